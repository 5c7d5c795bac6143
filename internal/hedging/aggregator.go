// Package hedging sums greek-weighted exposure and trades the underlying against it.
package hedging

import (
	"time"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/ports"
)

// Market is the pricing state an aggregation is evaluated at.
type Market struct {
	Spot float64
	Rate float64
	Vol  float64
	Now  time.Time
}

// SensitivityFunc returns the underlying-equivalent units per unit of position.
type SensitivityFunc func(inst domain.Instrument, m Market) float64

// UnitSensitivity treats the instrument as one-for-one with the underlying.
func UnitSensitivity(domain.Instrument, Market) float64 { return 1 }

// FixedSensitivity returns a constant weight.
func FixedSensitivity(w float64) SensitivityFunc {
	return func(domain.Instrument, Market) float64 { return w }
}

// Book is the set of instruments hedged against one underlying.
type Book struct {
	Options []domain.Instrument
	Futures []domain.Instrument
	Proxies []domain.Instrument
}

// Contribution is one instrument's share of the exposure.
type Contribution struct {
	InstrumentID string
	Position     int
	Sensitivity  float64
	Exposure     float64
}

// Aggregator is a linear risk model: exposure = sum(position * sensitivity).
type Aggregator struct {
	model   ports.PricingModel
	proxies map[string]SensitivityFunc
}

// NewAggregator uses UnitSensitivity for every proxy without an entry in proxies.
func NewAggregator(model ports.PricingModel, proxies map[string]SensitivityFunc) *Aggregator {
	if proxies == nil {
		proxies = map[string]SensitivityFunc{}
	}
	return &Aggregator{model: model, proxies: proxies}
}

// Aggregate returns the total exposure in underlying units, untruncated,
// and the non-zero contributions that make it up.
func (a *Aggregator) Aggregate(positions domain.Positions, book Book, m Market) (float64, []Contribution) {
	var (
		total float64
		parts []Contribution
	)
	add := func(inst domain.Instrument, sens float64) {
		pos := positions.Get(inst.ID)
		if pos == 0 {
			return
		}
		exp := float64(pos) * sens
		total += exp
		parts = append(parts, Contribution{InstrumentID: inst.ID, Position: pos, Sensitivity: sens, Exposure: exp})
	}

	for _, opt := range book.Options {
		t := opt.TimeToExpiry(m.Now)
		add(opt, a.model.Delta(opt.OptionKind, m.Spot, opt.Strike, t, m.Rate, m.Vol))
	}
	for _, fut := range book.Futures {
		add(fut, a.model.ForwardDiscount(fut.TimeToExpiry(m.Now), m.Rate))
	}
	for _, px := range book.Proxies {
		fn, ok := a.proxies[px.ID]
		if !ok {
			fn = UnitSensitivity
		}
		add(px, fn(px, m))
	}
	return total, parts
}
