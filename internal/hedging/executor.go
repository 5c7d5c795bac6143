package hedging

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/metrics"
	"github.com/betbot/deltamm/internal/ports"
	"github.com/betbot/deltamm/internal/quoting"
	"github.com/betbot/deltamm/pkg/marketmath"
)

// Params 对冲参数
type Params struct {
	UnderlyingID  string
	HedgeCost     float64 // price concession paid for an immediate fill
	PositionLimit int
	TickSize      float64
}

// Decision records what the executor did and why.
type Decision struct {
	Exposure float64
	Position int
	Required int // >0 buy, <0 sell
	Side     domain.Side
	Volume   int
	Price    float64
	OrderID  string
}

// Acted reports whether an order was sent.
func (d Decision) Acted() bool { return d.OrderID != "" }

// Required is -position - trunc(exposure): the trade that flattens the book.
func Required(underlyingPosition int, exposure float64) int {
	return -underlyingPosition - int(math.Trunc(exposure))
}

// Executor turns an exposure into an immediate order on the underlying.
type Executor struct {
	orders ports.OrderInserter
	hook   ports.HedgeHandler
	log    *logrus.Entry
}

// NewExecutor hook may be nil.
func NewExecutor(orders ports.OrderInserter, hook ports.HedgeHandler) *Executor {
	return &Executor{
		orders: orders,
		hook:   hook,
		log:    logrus.WithField("component", "hedging"),
	}
}

// Hedge buys at roundUp(spot)+cost or sells at roundDown(spot)-cost, clamped by the position limit.
// Nothing is sent while the book is within one lot of flat or the limit is exhausted on the needed side.
func (e *Executor) Hedge(ctx context.Context, p Params, exposure float64, underlyingPosition int, spot float64) (Decision, error) {
	d := Decision{Exposure: exposure, Position: underlyingPosition}
	if math.IsNaN(exposure) || math.IsInf(exposure, 0) {
		e.log.WithFields(logrus.Fields{
			"exposure": exposure,
			"position": underlyingPosition,
		}).Warn("exposure is not finite, skipping hedge")
		return d, nil
	}
	d.Required = Required(underlyingPosition, exposure)

	need := d.Required
	if need < 0 {
		need = -need
	}
	buyVol, sellVol := quoting.Allocate(underlyingPosition, need, p.PositionLimit)

	switch {
	case d.Required >= 1 && buyVol >= 1:
		d.Side = domain.SideBid
		d.Volume = buyVol
		d.Price = marketmath.Sum(marketmath.RoundUpToTick(spot, p.TickSize), p.HedgeCost)
	case d.Required <= -1 && sellVol >= 1:
		d.Side = domain.SideAsk
		d.Volume = sellVol
		d.Price = marketmath.Sum(marketmath.RoundDownToTick(spot, p.TickSize), -p.HedgeCost)
	default:
		e.log.WithFields(logrus.Fields{
			"exposure": exposure,
			"position": underlyingPosition,
			"required": d.Required,
		}).Debug("no hedge needed")
		return d, nil
	}

	if d.Price <= 0 {
		e.log.WithFields(logrus.Fields{"spot": spot, "price": d.Price}).Warn("hedge price not positive, skipping")
		d.Side, d.Volume, d.Price = "", 0, 0
		return d, nil
	}

	req := domain.OrderRequest{
		InstrumentID: p.UnderlyingID,
		Side:         d.Side,
		Price:        d.Price,
		Volume:       d.Volume,
		Type:         domain.OrderTypeImmediate,
	}
	id, err := e.orders.InsertOrder(ctx, req)
	if err != nil {
		return d, errors.Wrapf(err, "hedge %s %s %d@%v", p.UnderlyingID, d.Side, d.Volume, d.Price)
	}
	d.OrderID = id
	metrics.HedgeOrders.Add(1)
	e.log.WithFields(logrus.Fields{
		"instrument": p.UnderlyingID,
		"exposure":   exposure,
		"position":   underlyingPosition,
		"side":       d.Side,
		"volume":     d.Volume,
		"price":      d.Price,
	}).Info("hedge order sent")
	if e.hook != nil {
		e.hook.HandleHedge(ctx, req, id, exposure)
	}
	return d, nil
}
