package marketmath

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tick arithmetic runs in decimal so that grid prices such as 99.9 stay exact.
// Float division would turn 99.9/0.1 into 998.9999... and floor one tick too low.

// RoundDownToTick returns floor(price/tick)*tick. Bids round down.
func RoundDownToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Floor().Mul(t).InexactFloat64()
}

// RoundUpToTick returns ceil(price/tick)*tick. Asks round up.
func RoundUpToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Ceil().Mul(t).InexactFloat64()
}

// ShiftTicks returns price + n*tick.
func ShiftTicks(price, tick float64, n int) float64 {
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Add(t.Mul(decimal.NewFromInt(int64(n)))).InexactFloat64()
}

// Sum adds two prices without binary drift, e.g. 0.3 + (-0.1) == 0.2.
func Sum(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

// TopOfBook 一档盘口
type TopOfBook struct {
	Bid float64
	Ask float64
}

// Validate 要求双边都存在且不交叉。
func (t TopOfBook) Validate() error {
	if t.Bid <= 0 || t.Ask <= 0 {
		return fmt.Errorf("top-of-book is one-sided: bid=%v ask=%v", t.Bid, t.Ask)
	}
	if t.Bid >= t.Ask {
		return fmt.Errorf("top-of-book is crossed: bid=%v ask=%v", t.Bid, t.Ask)
	}
	return nil
}

// Mid 中间价
func (t TopOfBook) Mid() float64 {
	sum := decimal.NewFromFloat(t.Bid).Add(decimal.NewFromFloat(t.Ask))
	return sum.Div(decimal.NewFromInt(2)).InexactFloat64()
}

// Spread 价差. 100.3-100.1 is exactly 0.2 here, not 0.20000000000000284.
func (t TopOfBook) Spread() float64 {
	return Sum(t.Ask, -t.Bid)
}
