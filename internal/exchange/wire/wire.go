// Package wire holds the JSON shapes of the exchange HTTP protocol.
package wire

import (
	"time"

	"github.com/betbot/deltamm/internal/domain"
)

// Error codes carried by ErrorResponse.Code.
const (
	CodeOrderNotFound     = "order_not_found"
	CodeUnknownInstrument = "unknown_instrument"
	CodeBadRequest        = "bad_request"
	CodeInternal          = "internal"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Instrument struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	BaseID     string    `json:"base_id,omitempty"`
	Expiry     time.Time `json:"expiry,omitempty"`
	Strike     float64   `json:"strike,omitempty"`
	OptionKind string    `json:"option_kind,omitempty"`
}

func FromInstrument(i domain.Instrument) Instrument {
	return Instrument{
		ID:         i.ID,
		Kind:       string(i.Kind),
		BaseID:     i.BaseID,
		Expiry:     i.Expiry,
		Strike:     i.Strike,
		OptionKind: string(i.OptionKind),
	}
}

func (i Instrument) Domain() domain.Instrument {
	return domain.Instrument{
		ID:         i.ID,
		Kind:       domain.InstrumentKind(i.Kind),
		BaseID:     i.BaseID,
		Expiry:     i.Expiry,
		Strike:     i.Strike,
		OptionKind: domain.OptionKind(i.OptionKind),
	}
}

// Level is [price, volume].
type Level struct {
	Price  float64 `json:"price"`
	Volume int     `json:"volume"`
}

type OrderBook struct {
	InstrumentID string    `json:"instrument_id"`
	Bids         []Level   `json:"bids"`
	Asks         []Level   `json:"asks"`
	Timestamp    time.Time `json:"timestamp"`
}

func FromOrderBook(b *domain.OrderBook) OrderBook {
	out := OrderBook{InstrumentID: b.InstrumentID, Timestamp: b.Timestamp, Bids: []Level{}, Asks: []Level{}}
	for _, l := range b.Bids {
		out.Bids = append(out.Bids, Level{Price: l.Price, Volume: l.Volume})
	}
	for _, l := range b.Asks {
		out.Asks = append(out.Asks, Level{Price: l.Price, Volume: l.Volume})
	}
	return out
}

func (b OrderBook) Domain() *domain.OrderBook {
	out := &domain.OrderBook{InstrumentID: b.InstrumentID, Timestamp: b.Timestamp}
	out.Bids = levels(b.Bids)
	out.Asks = levels(b.Asks)
	return out
}

func levels(in []Level) []domain.PriceLevel {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		out = append(out, domain.PriceLevel{Price: l.Price, Volume: l.Volume})
	}
	return out
}

// SetBookRequest replaces external liquidity in the simulator.
type SetBookRequest struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

type Order struct {
	ID           string  `json:"id"`
	InstrumentID string  `json:"instrument_id"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Volume       int     `json:"volume"`
}

func FromOrder(o domain.Order) Order {
	return Order{ID: o.ID, InstrumentID: o.InstrumentID, Side: string(o.Side), Price: o.Price, Volume: o.Volume}
}

func (o Order) Domain() domain.Order {
	return domain.Order{ID: o.ID, InstrumentID: o.InstrumentID, Side: domain.Side(o.Side), Price: o.Price, Volume: o.Volume}
}

type InsertOrderRequest struct {
	InstrumentID string  `json:"instrument_id"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Volume       int     `json:"volume"`
	Type         string  `json:"type"`
}

func FromOrderRequest(r domain.OrderRequest) InsertOrderRequest {
	return InsertOrderRequest{InstrumentID: r.InstrumentID, Side: string(r.Side), Price: r.Price, Volume: r.Volume, Type: string(r.Type)}
}

func (r InsertOrderRequest) Domain() domain.OrderRequest {
	return domain.OrderRequest{
		InstrumentID: r.InstrumentID,
		Side:         domain.Side(r.Side),
		Price:        r.Price,
		Volume:       r.Volume,
		Type:         domain.OrderType(r.Type),
	}
}

type InsertOrderResponse struct {
	OrderID string `json:"order_id"`
}

type FillRequest struct {
	Volume int `json:"volume"`
}

type Trade struct {
	InstrumentID string    `json:"instrument_id"`
	OrderID      string    `json:"order_id"`
	Side         string    `json:"side"`
	Price        float64   `json:"price"`
	Volume       int       `json:"volume"`
	Timestamp    time.Time `json:"timestamp"`
}

func FromTrade(t domain.Trade) Trade {
	return Trade{InstrumentID: t.InstrumentID, OrderID: t.OrderID, Side: string(t.Side), Price: t.Price, Volume: t.Volume, Timestamp: t.Timestamp}
}

func (t Trade) Domain() domain.Trade {
	return domain.Trade{InstrumentID: t.InstrumentID, OrderID: t.OrderID, Side: domain.Side(t.Side), Price: t.Price, Volume: t.Volume, Timestamp: t.Timestamp}
}
