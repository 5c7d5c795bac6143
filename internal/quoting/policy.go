package quoting

import "github.com/betbot/deltamm/pkg/marketmath"

// Regime 报价模式
type Regime string

const (
	// RegimeUnwind quotes at the touch to offload inventory at the position limit.
	RegimeUnwind Regime = "unwind"
	// RegimeDynamic quotes one tick inside the touch when the market already leaves enough edge.
	RegimeDynamic Regime = "dynamic"
	// RegimeStatic quotes fair value +/- pillow on the tick grid.
	RegimeStatic Regime = "static"
)

const priceEpsilon = 1e-9

// PolicyInput is everything SelectPrices looks at.
type PolicyInput struct {
	Book          marketmath.TopOfBook
	FairValue     float64
	Pillow        float64
	TickSize      float64
	Position      int
	PositionLimit int
}

// Quote is a price pair and the regime that produced it.
type Quote struct {
	Bid    float64
	Ask    float64
	Regime Regime
}

// Crossed reports bid >= ask. Such a pair must never be inserted on both sides.
func (q Quote) Crossed() bool {
	return q.Bid >= q.Ask-priceEpsilon
}

// SelectPrices chooses the bid/ask for one instrument.
//
//  1. |position| >= limit: best bid + tick / best ask - tick.
//  2. the touch is outside fv +/- pillow by at least a tick: one tick inside the touch.
//  3. otherwise fv - pillow rounded down, fv + pillow rounded up.
func SelectPrices(in PolicyInput) Quote {
	tick := in.TickSize
	insideBid := marketmath.ShiftTicks(in.Book.Bid, tick, 1)
	insideAsk := marketmath.ShiftTicks(in.Book.Ask, tick, -1)

	if in.PositionLimit > 0 && abs(in.Position) >= in.PositionLimit {
		return Quote{Bid: insideBid, Ask: insideAsk, Regime: RegimeUnwind}
	}

	floorBid := marketmath.Sum(in.FairValue, -in.Pillow)
	floorAsk := marketmath.Sum(in.FairValue, in.Pillow)
	if insideBid <= floorBid+priceEpsilon && insideAsk >= floorAsk-priceEpsilon {
		return Quote{Bid: insideBid, Ask: insideAsk, Regime: RegimeDynamic}
	}

	return Quote{
		Bid:    marketmath.RoundDownToTick(floorBid, tick),
		Ask:    marketmath.RoundUpToTick(floorAsk, tick),
		Regime: RegimeStatic,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
