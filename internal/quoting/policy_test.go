package quoting

import (
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"

	"github.com/betbot/deltamm/pkg/marketmath"
)

var touch = marketmath.TopOfBook{Bid: 99.9, Ask: 100.1}

func TestSelectPrices_Regimes(t *testing.T) {
	cases := []struct {
		name     string
		in       PolicyInput
		want     Quote
		wantOver bool
	}{
		{
			name: "static on grid",
			in:   PolicyInput{Book: touch, FairValue: 100, Pillow: 0.1, TickSize: 0.1, Position: 0, PositionLimit: 100},
			want: Quote{Bid: 99.9, Ask: 100.1, Regime: RegimeStatic},
		},
		{
			name: "unwind at long limit",
			in:   PolicyInput{Book: touch, FairValue: 100, Pillow: 0.1, TickSize: 0.1, Position: 100, PositionLimit: 100},
			want: Quote{Bid: 100.0, Ask: 100.0, Regime: RegimeUnwind},
		},
		{
			name: "unwind at short limit",
			in:   PolicyInput{Book: touch, FairValue: 50, Pillow: 0.1, TickSize: 0.1, Position: -100, PositionLimit: 100},
			want: Quote{Bid: 100.0, Ask: 100.0, Regime: RegimeUnwind},
		},
		{
			name: "dynamic inside a wide touch",
			in:   PolicyInput{Book: marketmath.TopOfBook{Bid: 99.0, Ask: 101.0}, FairValue: 100, Pillow: 0.1, TickSize: 0.1, PositionLimit: 100},
			want: Quote{Bid: 99.1, Ask: 100.9, Regime: RegimeDynamic},
		},
		{
			name: "static rounds off-grid fair value outward",
			in:   PolicyInput{Book: marketmath.TopOfBook{Bid: 99.0, Ask: 100.2}, FairValue: 100.04, Pillow: 0.1, TickSize: 0.1, PositionLimit: 100},
			want: Quote{Bid: 99.9, Ask: 100.2, Regime: RegimeStatic},
		},
		{
			name: "static when only one side leaves edge",
			in:   PolicyInput{Book: marketmath.TopOfBook{Bid: 95, Ask: 100.1}, FairValue: 100, Pillow: 0.5, TickSize: 0.1, PositionLimit: 100},
			want: Quote{Bid: 99.5, Ask: 100.5, Regime: RegimeStatic},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectPrices(tc.in)
			assert.Equal(t, tc.want.Regime, got.Regime)
			assert.InDelta(t, tc.want.Bid, got.Bid, 1e-9)
			assert.InDelta(t, tc.want.Ask, got.Ask, 1e-9)
		})
	}
}

func TestQuoteCrossed(t *testing.T) {
	assert.True(t, Quote{Bid: 100, Ask: 100}.Crossed())
	assert.True(t, Quote{Bid: 100.1, Ask: 100}.Crossed())
	assert.False(t, Quote{Bid: 99.9, Ask: 100}.Crossed())

	// pillow of zero on an on-grid fair value collapses the static pair
	q := SelectPrices(PolicyInput{Book: marketmath.TopOfBook{Bid: 99.95, Ask: 100.05}, FairValue: 100, Pillow: 0, TickSize: 0.1, PositionLimit: 10})
	assert.Equal(t, RegimeStatic, q.Regime)
	assert.True(t, q.Crossed())
}

// In the static regime the engine keeps at least pillow of edge, and gives up less than one extra tick.
func TestSelectPrices_StaticEdge(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ticks := []float64{0.01, 0.05, 0.1, 0.5, 1}
	for i := 0; i < 5000; i++ {
		tick := ticks[rng.Intn(len(ticks))]
		fv := 1 + rng.Float64()*1000
		pillow := rng.Float64() * 5
		bid := fv - rng.Float64()*10
		in := PolicyInput{
			Book:          marketmath.TopOfBook{Bid: bid, Ask: bid + tick + rng.Float64()*10},
			FairValue:     fv,
			Pillow:        pillow,
			TickSize:      tick,
			Position:      rng.Intn(99) - 49,
			PositionLimit: 50,
		}
		q := SelectPrices(in)
		if q.Regime != RegimeStatic {
			continue
		}
		lo, hi := fv-pillow, fv+pillow
		if q.Bid > lo+1e-9 || q.Bid <= lo-tick-1e-9 {
			t.Fatalf("static bid %v outside (%v-%v, %v] for %+v", q.Bid, lo, tick, lo, in)
		}
		if q.Ask < hi-1e-9 || q.Ask >= hi+tick+1e-9 {
			t.Fatalf("static ask %v outside [%v, %v+%v) for %+v", q.Ask, hi, hi, tick, in)
		}
	}
}

func TestAllocate_Bounds(t *testing.T) {
	property := func(pos int16, desired uint8, limit uint8) bool {
		l := int(limit)
		p := int(pos)
		bid, ask := Allocate(p, int(desired), l)
		if bid > l-p || ask > l+p || bid > int(desired) || ask > int(desired) {
			return false
		}
		if abs(p) <= l && (bid < 0 || ask < 0) {
			return false
		}
		return true
	}
	if err := quick.Check(property, nil); err != nil {
		t.Fatalf("Allocate bounds: %v", err)
	}
}

func TestAllocate_Table(t *testing.T) {
	bid, ask := Allocate(0, 10, 100)
	assert.Equal(t, 10, bid)
	assert.Equal(t, 10, ask)

	bid, ask = Allocate(95, 10, 100)
	assert.Equal(t, 5, bid)
	assert.Equal(t, 10, ask)

	bid, ask = Allocate(-100, 10, 100)
	assert.Equal(t, 10, bid)
	assert.Equal(t, 0, ask)
}
