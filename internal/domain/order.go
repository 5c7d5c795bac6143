package domain

import "fmt"

// Side 订单方向
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// OrderType 订单类型
type OrderType string

const (
	// OrderTypeResting waits on the book for a counterparty.
	OrderTypeResting OrderType = "resting"
	// OrderTypeImmediate executes against available liquidity and discards the remainder.
	OrderTypeImmediate OrderType = "immediate"
)

// OrderRequest is what the engine asks the exchange to insert.
type OrderRequest struct {
	InstrumentID string
	Side         Side
	Price        float64
	Volume       int
	Type         OrderType
}

// Validate 检查下单参数
func (r OrderRequest) Validate() error {
	if r.InstrumentID == "" {
		return fmt.Errorf("order request: empty instrument")
	}
	if r.Side != SideBid && r.Side != SideAsk {
		return fmt.Errorf("order request %s: invalid side %q", r.InstrumentID, r.Side)
	}
	if r.Type != OrderTypeResting && r.Type != OrderTypeImmediate {
		return fmt.Errorf("order request %s: invalid type %q", r.InstrumentID, r.Type)
	}
	if r.Volume <= 0 {
		return fmt.Errorf("order request %s: volume must be > 0, got %d", r.InstrumentID, r.Volume)
	}
	if r.Price <= 0 {
		return fmt.Errorf("order request %s: price must be > 0, got %v", r.InstrumentID, r.Price)
	}
	return nil
}

// Order is an outstanding order as reported by the exchange.
type Order struct {
	ID           string
	InstrumentID string
	Side         Side
	Price        float64
	Volume       int
}
