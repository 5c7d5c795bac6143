package quoting

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/metrics"
	"github.com/betbot/deltamm/internal/ports"
	"github.com/betbot/deltamm/pkg/marketmath"
)

// Exchange is the part of the exchange a refresh touches.
type Exchange interface {
	ports.TradePoller
	ports.OutstandingOrderGetter
	ports.OrderCanceler
	ports.OrderInserter
	ports.PositionGetter
}

// BestPriceResolver supplies the current touch.
type BestPriceResolver interface {
	ResolveBest(ctx context.Context, instrumentID string) (marketmath.TopOfBook, error)
}

// Result describes one refresh.
type Result struct {
	InstrumentID string
	Trades       int
	Cancelled    int
	Quote        Quote
	Position     int
	Direction    domain.Direction
	BidVolume    int
	AskVolume    int
	Inserted     map[domain.Side]string // side -> order id
}

// Refresher replaces all outstanding orders of an instrument with a fresh quote.
type Refresher struct {
	ex        Exchange
	resolver  BestPriceResolver
	allocator *VolumeAllocator
	trades    ports.TradeHandler
	log       *logrus.Entry
}

// NewRefresher wires a refresher; trades may be nil.
func NewRefresher(ex Exchange, resolver BestPriceResolver, trades ports.TradeHandler) *Refresher {
	return &Refresher{
		ex:        ex,
		resolver:  resolver,
		allocator: NewVolumeAllocator(ex),
		trades:    trades,
		log:       logrus.WithField("component", "quoting"),
	}
}

// Refresh runs one cycle for one instrument:
// drain trades, cancel everything outstanding, read the touch, price and size, gate, insert.
//
// domain.ErrNoPrice and domain.ErrNoQuote mean nothing was inserted this cycle.
// Exchange failures are returned to the caller.
func (r *Refresher) Refresh(ctx context.Context, instrumentID string, fairValue float64, p domain.QuoteParameters) (Result, error) {
	res := Result{InstrumentID: instrumentID, Inserted: map[domain.Side]string{}}
	log := r.log.WithField("instrument", instrumentID)

	trades, err := r.ex.PollTrades(ctx, instrumentID)
	if err != nil {
		return res, errors.Wrapf(err, "poll trades %s", instrumentID)
	}
	res.Trades = len(trades)
	r.reportTrades(ctx, log, trades)

	cancelled, err := r.cancelAll(ctx, instrumentID)
	res.Cancelled = cancelled
	if err != nil {
		return res, err
	}

	tob, err := r.resolver.ResolveBest(ctx, instrumentID)
	if err != nil {
		return res, err
	}

	bidVol, askVol, position, err := r.allocator.Allocate(ctx, instrumentID, p.Volume, p.PositionLimit)
	if err != nil {
		return res, err
	}
	res.Position = position
	res.Direction = p.EffectiveDirection(position)

	q := SelectPrices(PolicyInput{
		Book:          tob,
		FairValue:     fairValue,
		Pillow:        p.Pillow,
		TickSize:      p.TickSize,
		Position:      position,
		PositionLimit: p.PositionLimit,
	})
	res.Quote = q

	quoteBid := bidVol > 0 && q.Bid > 0 && res.Direction.Allows(domain.SideBid)
	quoteAsk := askVol > 0 && q.Ask > 0 && res.Direction.Allows(domain.SideAsk)
	if quoteBid && quoteAsk && q.Crossed() {
		metrics.NoQuoteSkips.Add(1)
		log.WithFields(logrus.Fields{"bid": q.Bid, "ask": q.Ask, "regime": q.Regime}).Warn("crossed quote, not quoting")
		return res, errors.Wrapf(domain.ErrNoQuote, "%s: bid %v >= ask %v", instrumentID, q.Bid, q.Ask)
	}

	if quoteBid {
		res.BidVolume = bidVol
		if err := r.insert(ctx, &res, domain.SideBid, q.Bid, bidVol); err != nil {
			return res, err
		}
	}
	if quoteAsk {
		res.AskVolume = askVol
		if err := r.insert(ctx, &res, domain.SideAsk, q.Ask, askVol); err != nil {
			return res, err
		}
	}

	log.WithFields(logrus.Fields{
		"fair_value": fairValue,
		"best_bid":   tob.Bid,
		"best_ask":   tob.Ask,
		"regime":     q.Regime,
		"bid":        q.Bid,
		"ask":        q.Ask,
		"bid_volume": res.BidVolume,
		"ask_volume": res.AskVolume,
		"position":   position,
		"direction":  res.Direction,
	}).Debug("quotes refreshed")
	return res, nil
}

func (r *Refresher) reportTrades(ctx context.Context, log *logrus.Entry, trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}
	for _, t := range trades {
		log.WithFields(logrus.Fields{
			"order_id": t.OrderID,
			"side":     t.Side,
			"price":    t.Price,
			"volume":   t.Volume,
		}).Info("trade")
	}
	metrics.TradesReported.Add(float64(len(trades)))
	if r.trades != nil {
		r.trades.HandleTrades(ctx, trades)
	}
}

// cancelAll cancels every outstanding order; orders that are already gone are skipped.
func (r *Refresher) cancelAll(ctx context.Context, instrumentID string) (int, error) {
	orders, err := r.ex.GetOutstandingOrders(ctx, instrumentID)
	if err != nil {
		return 0, errors.Wrapf(err, "get outstanding orders %s", instrumentID)
	}
	n := 0
	for id := range orders {
		err := r.ex.CancelOrder(ctx, instrumentID, id)
		if errors.Is(err, domain.ErrOrderNotFound) {
			continue
		}
		if err != nil {
			return n, errors.Wrapf(err, "cancel order %s/%s", instrumentID, id)
		}
		n++
	}
	metrics.OrdersCancelled.Add(float64(n))
	return n, nil
}

func (r *Refresher) insert(ctx context.Context, res *Result, side domain.Side, price float64, volume int) error {
	id, err := r.ex.InsertOrder(ctx, domain.OrderRequest{
		InstrumentID: res.InstrumentID,
		Side:         side,
		Price:        price,
		Volume:       volume,
		Type:         domain.OrderTypeResting,
	})
	if err != nil {
		return errors.Wrapf(err, "insert %s %s %d@%v", res.InstrumentID, side, volume, price)
	}
	metrics.QuotesInserted.Add(1)
	res.Inserted[side] = id
	return nil
}
