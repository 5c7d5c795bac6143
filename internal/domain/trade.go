package domain

import "time"

// Trade is one fill of one of our orders, as notified by the exchange.
type Trade struct {
	InstrumentID string
	OrderID      string
	Side         Side // side of our order
	Price        float64
	Volume       int
	Timestamp    time.Time
}

// SignedVolume is positive for bought volume and negative for sold.
func (t Trade) SignedVolume() int {
	if t.Side == SideAsk {
		return -t.Volume
	}
	return t.Volume
}
