// Package pricing implements the closed-form model the engine quotes and hedges with.
package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/betbot/deltamm/internal/domain"
)

// BlackScholes prices European options and futures with a continuous rate.
// The zero value is ready to use.
type BlackScholes struct{}

func d1d2(spot, strike, t, r, vol float64) (float64, float64) {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (r+vol*vol/2)*t) / (vol * sqrtT)
	return d1, d1 - vol*sqrtT
}

// degenerate covers expiry, zero vol and non-positive prices where d1/d2 are undefined.
func degenerate(spot, strike, t, vol float64) bool {
	return t <= 0 || vol <= 0 || spot <= 0 || strike <= 0
}

// FairValue returns the theoretical option price in price units (not normalised by spot).
func (BlackScholes) FairValue(kind domain.OptionKind, spot, strike, t, r, vol float64) float64 {
	if degenerate(spot, strike, t, vol) {
		// intrinsic value of the forward, discounted
		fwd := spot * math.Exp(r*math.Max(t, 0))
		disc := math.Exp(-r * math.Max(t, 0))
		if kind == domain.OptionPut {
			return disc * math.Max(strike-fwd, 0)
		}
		return disc * math.Max(fwd-strike, 0)
	}
	d1, d2 := d1d2(spot, strike, t, r, vol)
	n := distuv.UnitNormal
	disc := math.Exp(-r * t)
	if kind == domain.OptionPut {
		return strike*disc*n.CDF(-d2) - spot*n.CDF(-d1)
	}
	return spot*n.CDF(d1) - strike*disc*n.CDF(d2)
}

// Delta is dV/dS.
func (BlackScholes) Delta(kind domain.OptionKind, spot, strike, t, r, vol float64) float64 {
	if degenerate(spot, strike, t, vol) {
		fwd := spot * math.Exp(r*math.Max(t, 0))
		if kind == domain.OptionPut {
			if fwd < strike {
				return -1
			}
			return 0
		}
		if fwd > strike {
			return 1
		}
		return 0
	}
	d1, _ := d1d2(spot, strike, t, r, vol)
	if kind == domain.OptionPut {
		return distuv.UnitNormal.CDF(d1) - 1
	}
	return distuv.UnitNormal.CDF(d1)
}

// ForwardDiscount is the multiplier turning spot into the fair forward: exp(t*r).
func (BlackScholes) ForwardDiscount(t, r float64) float64 {
	return math.Exp(t * r)
}

// FutureFairValue 期货理论价
func (b BlackScholes) FutureFairValue(spot, t, r float64) float64 {
	return spot * b.ForwardDiscount(t, r)
}
