package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentTimeToExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opt := Instrument{ID: "OPT", Kind: KindOption, Expiry: now.Add(365 * 24 * time.Hour)}
	assert.InDelta(t, 1.0, opt.TimeToExpiry(now), 1e-12)

	expired := Instrument{ID: "OLD", Kind: KindFuture, Expiry: now.Add(-time.Hour)}
	assert.Equal(t, 0.0, expired.TimeToExpiry(now))

	assert.Equal(t, 0.0, Instrument{ID: "SPOT", Kind: KindUnderlying}.TimeToExpiry(now))
}

func TestInstrumentValidate(t *testing.T) {
	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		inst    Instrument
		wantErr bool
	}{
		{"underlying", Instrument{ID: "X", Kind: KindUnderlying}, false},
		{"proxy", Instrument{ID: "X_DUAL", Kind: KindProxy, BaseID: "X"}, false},
		{"proxy without base", Instrument{ID: "X_DUAL", Kind: KindProxy}, true},
		{"future", Instrument{ID: "X_F", Kind: KindFuture, BaseID: "X", Expiry: exp}, false},
		{"future without expiry", Instrument{ID: "X_F", Kind: KindFuture, BaseID: "X"}, true},
		{"call", Instrument{ID: "X_C", Kind: KindOption, BaseID: "X", Expiry: exp, Strike: 100, OptionKind: OptionCall}, false},
		{"option zero strike", Instrument{ID: "X_C", Kind: KindOption, BaseID: "X", Expiry: exp, OptionKind: OptionCall}, true},
		{"option bad kind", Instrument{ID: "X_C", Kind: KindOption, BaseID: "X", Expiry: exp, Strike: 1, OptionKind: "straddle"}, true},
		{"empty id", Instrument{Kind: KindUnderlying}, true},
		{"unknown kind", Instrument{ID: "X", Kind: "bond"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.inst.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderBookAccessors(t *testing.T) {
	book := &OrderBook{
		Bids: []PriceLevel{{Price: 99.9, Volume: 10}, {Price: 99.8, Volume: 5}},
		Asks: []PriceLevel{{Price: 100.1, Volume: 10}},
	}
	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 99.9, bid)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 100.1, ask)

	oneSided := &OrderBook{Bids: book.Bids}
	_, ok = oneSided.BestAsk()
	assert.False(t, ok)

	var nilBook *OrderBook
	_, ok = nilBook.BestBid()
	assert.False(t, ok)
}

func TestEffectiveDirection(t *testing.T) {
	q := QuoteParameters{Direction: DirectionBoth, OffloadThreshold: 50}
	assert.Equal(t, DirectionBoth, q.EffectiveDirection(49))
	assert.Equal(t, DirectionSell, q.EffectiveDirection(50))
	assert.Equal(t, DirectionBuy, q.EffectiveDirection(-60))

	noOffload := QuoteParameters{Direction: DirectionBuy}
	assert.Equal(t, DirectionBuy, noOffload.EffectiveDirection(1000))
	assert.Equal(t, DirectionBoth, QuoteParameters{}.EffectiveDirection(0))
}

func TestDirectionAllows(t *testing.T) {
	assert.True(t, DirectionBoth.Allows(SideBid))
	assert.True(t, DirectionBoth.Allows(SideAsk))
	assert.True(t, DirectionBuy.Allows(SideBid))
	assert.False(t, DirectionBuy.Allows(SideAsk))
	assert.False(t, DirectionSell.Allows(SideBid))
	assert.True(t, DirectionSell.Allows(SideAsk))

	_, err := ParseDirection("sideways")
	assert.Error(t, err)
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, DirectionBoth, d)
}

func TestQuoteParametersValidate(t *testing.T) {
	good := QuoteParameters{Volume: 10, Pillow: 0.1, PositionLimit: 100, TickSize: 0.1, Direction: DirectionBoth}
	require.NoError(t, good.Validate())

	bad := good
	bad.TickSize = 0
	assert.Error(t, bad.Validate())

	bad = good
	bad.Volume = 0
	assert.Error(t, bad.Validate())
}

func TestTransient(t *testing.T) {
	base := fmt.Errorf("gateway timeout")
	err := errors.Wrap(Transient(base), "get order book")
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsTransient(base))
	assert.Nil(t, Transient(nil))
}

func TestOrderRequestValidate(t *testing.T) {
	ok := OrderRequest{InstrumentID: "X", Side: SideBid, Price: 1, Volume: 1, Type: OrderTypeResting}
	require.NoError(t, ok.Validate())

	noVol := ok
	noVol.Volume = 0
	assert.Error(t, noVol.Validate())

	badType := ok
	badType.Type = "gtc"
	assert.Error(t, badType.Validate())
}

func TestTradeSignedVolume(t *testing.T) {
	assert.Equal(t, 5, Trade{Side: SideBid, Volume: 5}.SignedVolume())
	assert.Equal(t, -5, Trade{Side: SideAsk, Volume: 5}.SignedVolume())
}
