// Package metrics holds the engine's prometheus counters and the debug server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func counter(name, help string) prometheus.Counter {
	return promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mm",
		Name:      name,
		Help:      help,
	})
}

var (
	Cycles           = counter("cycles_total", "Strategy cycles started")
	CycleErrors      = counter("cycle_errors_total", "Cycles ended by a fatal error")
	RetryableErrors  = counter("retryable_errors_total", "Cycles aborted by a transient exchange error")
	NoPriceSkips     = counter("no_price_skips_total", "Instrument groups skipped for lack of a price")
	NoQuoteSkips     = counter("no_quote_skips_total", "Instruments skipped because the quote was crossed")
	LiquidityRetries = counter("liquidity_retries_total", "Strict resolutions retried on a too-wide book")
	LevelRetries     = counter("level_retries_total", "Order book fetches retried on a missing or malformed book")
	QuotesInserted   = counter("quotes_inserted_total", "Resting quote orders inserted")
	OrdersCancelled  = counter("orders_cancelled_total", "Outstanding orders cancelled before requoting")
	TradesReported   = counter("trades_reported_total", "Trade notifications drained and reported")
	HedgeOrders      = counter("hedge_orders_total", "Immediate hedge orders inserted")
	BreakerSkips     = counter("breaker_skips_total", "Cycles skipped while the circuit breaker was open")

	// 最近一次对冲时的净 delta 敞口
	LastExposure = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mm",
		Name:      "last_exposure",
		Help:      "Aggregate hedge exposure seen by the last hedge step",
	})
)
