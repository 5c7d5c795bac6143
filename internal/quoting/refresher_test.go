package quoting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/exchange/paper"
	"github.com/betbot/deltamm/internal/marketdata"
)

type recordingTrades struct {
	mu     sync.Mutex
	trades []domain.Trade
}

func (r *recordingTrades) HandleTrades(ctx context.Context, trades []domain.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trades...)
}

func defaultParams() domain.QuoteParameters {
	return domain.QuoteParameters{Volume: 10, Pillow: 0.1, PositionLimit: 100, TickSize: 0.1, Direction: domain.DirectionBoth}
}

func newRefresherFixture(t *testing.T) (*paper.Exchange, *Refresher, *recordingTrades) {
	t.Helper()
	ex := paper.New()
	require.NoError(t, ex.AddInstrument(domain.Instrument{ID: "SPOT", Kind: domain.KindUnderlying}))
	ex.SetBook("SPOT", []domain.PriceLevel{{Price: 99.9, Volume: 10}}, []domain.PriceLevel{{Price: 100.1, Volume: 10}})
	resolver := marketdata.NewResolver(ex, marketdata.Config{LiquidityRetry: time.Millisecond, LevelRetry: time.Millisecond})
	rec := &recordingTrades{}
	return ex, NewRefresher(ex, resolver, rec), rec
}

func insertedBySide(ex *paper.Exchange) map[domain.Side]domain.OrderRequest {
	out := map[domain.Side]domain.OrderRequest{}
	for _, r := range ex.Inserted() {
		out[r.Side] = r
	}
	return out
}

// 平仓位时围绕参考价一档报双边
func TestRefresh_StaticQuotes(t *testing.T) {
	ex, r, _ := newRefresherFixture(t)

	res, err := r.Refresh(context.Background(), "SPOT", 100.0, defaultParams())
	require.NoError(t, err)
	assert.Equal(t, RegimeStatic, res.Quote.Regime)

	got := insertedBySide(ex)
	require.Len(t, got, 2)
	assert.InDelta(t, 99.9, got[domain.SideBid].Price, 1e-9)
	assert.InDelta(t, 100.1, got[domain.SideAsk].Price, 1e-9)
	assert.Equal(t, 10, got[domain.SideBid].Volume)
	assert.Equal(t, 10, got[domain.SideAsk].Volume)
	assert.Equal(t, domain.OrderTypeResting, got[domain.SideBid].Type)
}

// At the long limit both quotes collapse onto the reference and only the offer is sent.
func TestRefresh_UnwindAtLimit(t *testing.T) {
	ex, r, _ := newRefresherFixture(t)
	ex.SetPosition("SPOT", 100)

	res, err := r.Refresh(context.Background(), "SPOT", 100.0, defaultParams())
	require.NoError(t, err)
	assert.Equal(t, RegimeUnwind, res.Quote.Regime)
	assert.InDelta(t, 100.0, res.Quote.Bid, 1e-9)
	assert.InDelta(t, 100.0, res.Quote.Ask, 1e-9)

	// no room to buy at the long limit: only the offer goes out
	got := insertedBySide(ex)
	require.Len(t, got, 1)
	assert.InDelta(t, 100.0, got[domain.SideAsk].Price, 1e-9)
	assert.Equal(t, 10, got[domain.SideAsk].Volume)
}

func TestRefresh_EmptyAskSideInsertsNothing(t *testing.T) {
	ex, r, _ := newRefresherFixture(t)
	ex.SetBook("SPOT", []domain.PriceLevel{{Price: 99.9, Volume: 10}}, nil)

	_, err := r.Refresh(context.Background(), "SPOT", 100.0, defaultParams())
	assert.ErrorIs(t, err, domain.ErrNoPrice)
	assert.Empty(t, ex.Inserted())
}

func TestRefresh_CancelsStaleOrdersFirst(t *testing.T) {
	ctx := context.Background()
	ex, r, _ := newRefresherFixture(t)
	p := defaultParams()

	_, err := r.Refresh(ctx, "SPOT", 100.0, p)
	require.NoError(t, err)
	res, err := r.Refresh(ctx, "SPOT", 100.0, p)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cancelled)

	orders, err := ex.GetOutstandingOrders(ctx, "SPOT")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, 2, ex.CallCount("CancelOrder"))
}

func TestRefresh_ReportsTrades(t *testing.T) {
	ctx := context.Background()
	ex, r, rec := newRefresherFixture(t)

	res, err := r.Refresh(ctx, "SPOT", 100.0, defaultParams())
	require.NoError(t, err)
	require.NoError(t, ex.Fill(res.Inserted[domain.SideBid], 4))

	res, err = r.Refresh(ctx, "SPOT", 100.0, defaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Trades)
	assert.Equal(t, 4, res.Position)
	require.Len(t, rec.trades, 1)
	assert.Equal(t, 4, rec.trades[0].Volume)
}

func TestRefresh_DirectionGate(t *testing.T) {
	cases := []struct {
		name      string
		direction domain.Direction
		position  int
		offload   int
		want      []domain.Side
	}{
		{"both", domain.DirectionBoth, 0, 0, []domain.Side{domain.SideBid, domain.SideAsk}},
		{"buy only", domain.DirectionBuy, 0, 0, []domain.Side{domain.SideBid}},
		{"sell only", domain.DirectionSell, 0, 0, []domain.Side{domain.SideAsk}},
		{"offload long", domain.DirectionBoth, 30, 25, []domain.Side{domain.SideAsk}},
		{"offload short", domain.DirectionBoth, -30, 25, []domain.Side{domain.SideBid}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex, r, _ := newRefresherFixture(t)
			ex.SetPosition("SPOT", tc.position)
			p := defaultParams()
			p.Direction = tc.direction
			p.OffloadThreshold = tc.offload

			_, err := r.Refresh(context.Background(), "SPOT", 100.0, p)
			require.NoError(t, err)
			got := insertedBySide(ex)
			require.Len(t, got, len(tc.want))
			for _, s := range tc.want {
				assert.Contains(t, got, s)
			}
		})
	}
}

func TestRefresh_CrossedQuoteIsNotInserted(t *testing.T) {
	ex, r, _ := newRefresherFixture(t)
	ex.SetBook("SPOT", []domain.PriceLevel{{Price: 99.95, Volume: 10}}, []domain.PriceLevel{{Price: 100.05, Volume: 10}})
	p := defaultParams()
	p.Pillow = 0

	_, err := r.Refresh(context.Background(), "SPOT", 100.0, p)
	assert.ErrorIs(t, err, domain.ErrNoQuote)
	assert.Empty(t, ex.Inserted())
}

func TestRefresh_ExchangeErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")

	ex, r, _ := newRefresherFixture(t)
	ex.FailNext("InsertOrder", boom)
	_, err := r.Refresh(context.Background(), "SPOT", 100.0, defaultParams())
	assert.ErrorIs(t, err, boom)

	ex, r, _ = newRefresherFixture(t)
	ex.FailNext("PollTrades", boom)
	_, err = r.Refresh(context.Background(), "SPOT", 100.0, defaultParams())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, ex.Inserted())
}

func TestRefresh_IgnoresAlreadyGoneOrders(t *testing.T) {
	ctx := context.Background()
	ex, r, _ := newRefresherFixture(t)
	_, err := r.Refresh(ctx, "SPOT", 100.0, defaultParams())
	require.NoError(t, err)

	ex.FailNext("CancelOrder", domain.ErrOrderNotFound)
	res, err := r.Refresh(ctx, "SPOT", 100.0, defaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)
}
