package domain

import (
	"fmt"
	"strings"
	"time"
)

// InstrumentKind 标的类型
type InstrumentKind string

const (
	KindUnderlying InstrumentKind = "underlying"
	KindOption     InstrumentKind = "option"
	KindFuture     InstrumentKind = "future"
	KindProxy      InstrumentKind = "proxy" // illiquid listing of the underlying
)

// OptionKind call/put
type OptionKind string

const (
	OptionCall OptionKind = "call"
	OptionPut  OptionKind = "put"
)

const yearDuration = 365 * 24 * time.Hour

// Instrument is loaded once at startup and never mutated afterwards.
type Instrument struct {
	ID         string
	Kind       InstrumentKind
	BaseID     string     // underlying for options/futures/proxies
	Expiry     time.Time  // options and futures only
	Strike     float64    // options only
	OptionKind OptionKind // options only
}

// TimeToExpiry returns the remaining life in years, floored at zero.
func (i Instrument) TimeToExpiry(now time.Time) float64 {
	if i.Expiry.IsZero() {
		return 0
	}
	left := i.Expiry.Sub(now)
	if left <= 0 {
		return 0
	}
	return float64(left) / float64(yearDuration)
}

// Validate checks the fields each kind requires.
func (i Instrument) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("instrument id is empty")
	}
	switch i.Kind {
	case KindUnderlying:
		return nil
	case KindProxy:
		if i.BaseID == "" {
			return fmt.Errorf("instrument %s: proxy without base instrument", i.ID)
		}
	case KindFuture:
		if i.BaseID == "" || i.Expiry.IsZero() {
			return fmt.Errorf("instrument %s: future requires base and expiry", i.ID)
		}
	case KindOption:
		if i.BaseID == "" || i.Expiry.IsZero() {
			return fmt.Errorf("instrument %s: option requires base and expiry", i.ID)
		}
		if i.Strike <= 0 {
			return fmt.Errorf("instrument %s: option strike must be > 0", i.ID)
		}
		if i.OptionKind != OptionCall && i.OptionKind != OptionPut {
			return fmt.Errorf("instrument %s: unknown option kind %q", i.ID, i.OptionKind)
		}
	default:
		return fmt.Errorf("instrument %s: unknown kind %q", i.ID, i.Kind)
	}
	return nil
}
