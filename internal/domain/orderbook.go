package domain

import "time"

// PriceLevel 一档价格
type PriceLevel struct {
	Price  float64
	Volume int
}

// OrderBook is a snapshot: bids descending, asks ascending.
type OrderBook struct {
	InstrumentID string
	Bids         []PriceLevel
	Asks         []PriceLevel
	Timestamp    time.Time
}

// BestBid returns the top bid, ok=false when the side is empty.
func (b *OrderBook) BestBid() (float64, bool) {
	if b == nil || len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the top ask, ok=false when the side is empty.
func (b *OrderBook) BestAsk() (float64, bool) {
	if b == nil || len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}
