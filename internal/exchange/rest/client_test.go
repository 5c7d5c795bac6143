package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/exchange/paper"
	"github.com/betbot/deltamm/internal/exchange/simserver"
)

func newSim(t *testing.T) (*paper.Exchange, *Client) {
	t.Helper()
	ex := paper.New()
	srv := httptest.NewServer(simserver.New(ex).Router())
	t.Cleanup(srv.Close)
	return ex, NewClient(srv.URL+"/", Options{RequestsPerSecond: 1000})
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ex, c := newSim(t)
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ex.AddInstrument(domain.Instrument{ID: "SPOT", Kind: domain.KindUnderlying}))
	require.NoError(t, ex.AddInstrument(domain.Instrument{ID: "C100", Kind: domain.KindOption, BaseID: "SPOT", Expiry: expiry, Strike: 100, OptionKind: domain.OptionCall}))
	ex.SetBook("SPOT", []domain.PriceLevel{{Price: 99.9, Volume: 5}}, []domain.PriceLevel{{Price: 100.1, Volume: 5}})

	all, err := c.ListInstruments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.OptionCall, all["C100"].OptionKind)
	assert.True(t, all["C100"].Expiry.Equal(expiry))

	book, err := c.GetOrderBook(ctx, "SPOT")
	require.NoError(t, err)
	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 99.9, bid)

	id, err := c.InsertOrder(ctx, domain.OrderRequest{InstrumentID: "SPOT", Side: domain.SideBid, Price: 99.5, Volume: 3, Type: domain.OrderTypeResting})
	require.NoError(t, err)
	orders, err := c.GetOutstandingOrders(ctx, "SPOT")
	require.NoError(t, err)
	require.Contains(t, orders, id)
	assert.Equal(t, 3, orders[id].Volume)

	require.NoError(t, c.CancelOrder(ctx, "SPOT", id))
	err = c.CancelOrder(ctx, "SPOT", id)
	assert.True(t, errors.Is(err, domain.ErrOrderNotFound))

	_, err = c.InsertOrder(ctx, domain.OrderRequest{InstrumentID: "SPOT", Side: domain.SideAsk, Price: 99.9, Volume: 2, Type: domain.OrderTypeImmediate})
	require.NoError(t, err)
	pos, err := c.GetPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, -2, pos.Get("SPOT"))

	trades, err := c.PollTrades(ctx, "SPOT")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, -2, trades[0].SignedVolume())
	trades, err = c.PollTrades(ctx, "SPOT")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestClient_UnknownInstrument(t *testing.T) {
	_, c := newSim(t)
	_, err := c.GetOrderBook(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, domain.ErrUnknownInstrument))
	assert.False(t, domain.IsTransient(err))
}

func TestClient_ServerErrorIsTransient(t *testing.T) {
	ex, c := newSim(t)
	ex.FailNext("GetPositions", errors.New("db down"))
	_, err := c.GetPositions(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"forbidden", http.StatusForbidden, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer srv.Close()
			c := NewClient(srv.URL, Options{RequestsPerSecond: 1000})

			_, err := c.GetPositions(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.transient, domain.IsTransient(err))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.Status)
		})
	}
}

func TestClient_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"SPOT": 4}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, Options{RequestsPerSecond: 1000, RetryCount: 2, RetryWait: time.Millisecond})

	pos, err := c.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, pos.Get("SPOT"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryInserts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, Options{RequestsPerSecond: 1000, RetryCount: 2, RetryWait: time.Millisecond})

	_, err := c.InsertOrder(context.Background(), domain.OrderRequest{InstrumentID: "SPOT", Side: domain.SideBid, Price: 1, Volume: 1, Type: domain.OrderTypeResting})
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_TransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, Options{RequestsPerSecond: 1000, Timeout: time.Second})
	_, err := c.GetPositions(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestClient_CancelledContext(t *testing.T) {
	_, c := newSim(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetPositions(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, domain.IsTransient(err))
}

func TestClient_InsertValidates(t *testing.T) {
	_, c := newSim(t)
	_, err := c.InsertOrder(context.Background(), domain.OrderRequest{InstrumentID: "SPOT", Side: domain.SideBid, Price: 1, Volume: 0, Type: domain.OrderTypeResting})
	assert.Error(t, err)
}

func TestClient_RateLimitBeforeDeadlineIsTransient(t *testing.T) {
	ex := paper.New()
	srv := httptest.NewServer(simserver.New(ex).Router())
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, Options{RequestsPerSecond: 1})

	_, err := c.GetPositions(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GetPositions(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err), "no token before the deadline: %v", err)
}
