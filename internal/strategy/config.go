package strategy

import (
	"fmt"
	"time"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/hedging"
	"github.com/betbot/deltamm/internal/marketdata"
)

// Config is immutable once the loop is built.
type Config struct {
	PrimaryID    string
	ProxyID      string   // quoted dual listing, also hedged as a proxy
	Secondaries  []string // quoted around their own lenient mid
	QuotePrimary bool
	MaxSpread    float64

	Rate       float64
	Volatility float64

	HedgeCost          float64
	HedgePositionLimit int
	HedgeTickSize      float64

	// Defaults apply to every instrument without an entry in Overrides.
	Defaults  domain.QuoteParameters
	Overrides map[string]domain.QuoteParameters

	// ProxySensitivity overrides the unit weight of proxy instruments.
	ProxySensitivity map[string]float64

	Resolver      marketdata.Config
	OptionPacing  time.Duration
	CycleInterval time.Duration

	MaxConsecutiveErrors int64
}

// QuoteParams returns the parameters for one instrument.
func (c Config) QuoteParams(instrumentID string) domain.QuoteParameters {
	if p, ok := c.Overrides[instrumentID]; ok {
		return p
	}
	return c.Defaults
}

// HedgeParams 对冲参数
func (c Config) HedgeParams() hedging.Params {
	return hedging.Params{
		UnderlyingID:  c.PrimaryID,
		HedgeCost:     c.HedgeCost,
		PositionLimit: c.HedgePositionLimit,
		TickSize:      c.HedgeTickSize,
	}
}

// Validate 配置检查
func (c Config) Validate() error {
	if c.PrimaryID == "" {
		return fmt.Errorf("primary instrument is required")
	}
	if c.MaxSpread <= 0 {
		return fmt.Errorf("max_spread must be > 0, got %v", c.MaxSpread)
	}
	if c.Volatility < 0 {
		return fmt.Errorf("volatility must be >= 0, got %v", c.Volatility)
	}
	if c.HedgeCost < 0 {
		return fmt.Errorf("hedge cost must be >= 0, got %v", c.HedgeCost)
	}
	if c.HedgePositionLimit <= 0 || c.HedgeTickSize <= 0 {
		return fmt.Errorf("hedge position_limit and tick_size must be > 0")
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for id, p := range c.Overrides {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", id, err)
		}
	}
	if c.CycleInterval < 0 || c.OptionPacing < 0 {
		return fmt.Errorf("timing intervals must be >= 0")
	}
	return nil
}

func (c Config) proxySensitivities() map[string]hedging.SensitivityFunc {
	out := make(map[string]hedging.SensitivityFunc, len(c.ProxySensitivity))
	for id, w := range c.ProxySensitivity {
		out[id] = hedging.FixedSensitivity(w)
	}
	return out
}
