package main

import (
	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/marketdata"
	"github.com/betbot/deltamm/internal/strategy"
	"github.com/betbot/deltamm/pkg/config"
)

// strategyConfig resolves the file config into the loop's immutable config.
func strategyConfig(cfg *config.Config) strategy.Config {
	overrides := make(map[string]domain.QuoteParameters)
	for _, id := range cfg.OverriddenIDs() {
		overrides[id] = cfg.QuoteParams(id)
	}
	return strategy.Config{
		PrimaryID:            cfg.Underlying.Primary,
		ProxyID:              cfg.Underlying.Proxy,
		Secondaries:          cfg.Underlying.Secondaries,
		QuotePrimary:         cfg.Underlying.QuotePrimary,
		MaxSpread:            cfg.Underlying.MaxSpread,
		Rate:                 cfg.Model.Rate,
		Volatility:           cfg.Model.Volatility,
		HedgeCost:            cfg.Hedge.Cost,
		HedgePositionLimit:   cfg.Hedge.PositionLimit,
		HedgeTickSize:        cfg.Hedge.TickSize,
		Defaults:             cfg.QuoteParams(""),
		Overrides:            overrides,
		ProxySensitivity:     cfg.ProxySensitivities(),
		OptionPacing:         cfg.Timing.OptionPacing.D(),
		CycleInterval:        cfg.Timing.CycleInterval.D(),
		MaxConsecutiveErrors: cfg.Risk.MaxConsecutiveErrors,
		Resolver: marketdata.Config{
			LiquidityRetry:      cfg.Timing.LiquidityRetry.D(),
			LevelRetry:          cfg.Timing.LevelRetry.D(),
			MaxLiquidityRetries: cfg.Timing.MaxLiquidityRetries,
		},
	}
}
