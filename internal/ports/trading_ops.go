package ports

import (
	"context"

	"github.com/betbot/deltamm/internal/domain"
)

// Small capability interfaces over the exchange. Components depend on the
// narrowest one they need; Exchange composes them for wiring.

type OrderBookGetter interface {
	GetOrderBook(ctx context.Context, instrumentID string) (*domain.OrderBook, error)
}

type PositionGetter interface {
	GetPositions(ctx context.Context) (domain.Positions, error)
}

type OutstandingOrderGetter interface {
	// GetOutstandingOrders returns order id -> order for one instrument.
	GetOutstandingOrders(ctx context.Context, instrumentID string) (map[string]domain.Order, error)
}

type OrderCanceler interface {
	// CancelOrder returns domain.ErrOrderNotFound when the order is already gone.
	CancelOrder(ctx context.Context, instrumentID, orderID string) error
}

type OrderInserter interface {
	InsertOrder(ctx context.Context, req domain.OrderRequest) (orderID string, err error)
}

type TradePoller interface {
	// PollTrades drains trade notifications received since the previous poll.
	PollTrades(ctx context.Context, instrumentID string) ([]domain.Trade, error)
}

type InstrumentLister interface {
	ListInstruments(ctx context.Context) (map[string]domain.Instrument, error)
}

// Exchange is the full collaborator surface the engine consumes.
type Exchange interface {
	OrderBookGetter
	PositionGetter
	OutstandingOrderGetter
	OrderCanceler
	OrderInserter
	TradePoller
	InstrumentLister
}

// PricingModel is the closed-form model used for fair values and hedge ratios.
type PricingModel interface {
	FairValue(kind domain.OptionKind, spot, strike, t, r, vol float64) float64
	Delta(kind domain.OptionKind, spot, strike, t, r, vol float64) float64
	ForwardDiscount(t, r float64) float64
	FutureFairValue(spot, t, r float64) float64
}
