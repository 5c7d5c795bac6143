package domain

import "fmt"

// Direction restricts which sides an instrument may be quoted on.
type Direction string

const (
	DirectionBoth Direction = "both"
	DirectionBuy  Direction = "buy"  // bid only
	DirectionSell Direction = "sell" // ask only
)

// ParseDirection accepts "" as both.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", DirectionBoth:
		return DirectionBoth, nil
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	}
	return "", fmt.Errorf("unknown trade direction %q (want both|buy|sell)", s)
}

// Allows reports whether the gate permits inserting on side s.
func (d Direction) Allows(s Side) bool {
	switch d {
	case DirectionBuy:
		return s == SideBid
	case DirectionSell:
		return s == SideAsk
	}
	return true
}

// QuoteParameters 单个标的的报价参数
type QuoteParameters struct {
	Volume        int
	Pillow        float64
	PositionLimit int
	TickSize      float64
	Direction     Direction
	// OffloadThreshold > 0 forces one-sided quoting once |position| reaches it.
	OffloadThreshold int
}

// EffectiveDirection applies offloading on top of the configured gate.
func (q QuoteParameters) EffectiveDirection(position int) Direction {
	if q.OffloadThreshold > 0 {
		if position >= q.OffloadThreshold {
			return DirectionSell
		}
		if position <= -q.OffloadThreshold {
			return DirectionBuy
		}
	}
	if q.Direction == "" {
		return DirectionBoth
	}
	return q.Direction
}

// Validate 参数合法性检查
func (q QuoteParameters) Validate() error {
	if q.Volume <= 0 {
		return fmt.Errorf("volume must be > 0, got %d", q.Volume)
	}
	if q.Pillow < 0 {
		return fmt.Errorf("pillow must be >= 0, got %v", q.Pillow)
	}
	if q.PositionLimit <= 0 {
		return fmt.Errorf("position_limit must be > 0, got %d", q.PositionLimit)
	}
	if q.TickSize <= 0 {
		return fmt.Errorf("tick_size must be > 0, got %v", q.TickSize)
	}
	if q.OffloadThreshold < 0 {
		return fmt.Errorf("offload_threshold must be >= 0, got %d", q.OffloadThreshold)
	}
	if _, err := ParseDirection(string(q.Direction)); err != nil {
		return err
	}
	return nil
}
