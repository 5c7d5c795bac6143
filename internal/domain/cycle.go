package domain

import "time"

// CycleOutcome 周期结果
type CycleOutcome string

const (
	OutcomeOK        CycleOutcome = "ok"
	OutcomeNoPrice   CycleOutcome = "no_price"  // primary unresolvable, nothing quoted or hedged
	OutcomeHalted    CycleOutcome = "halted"    // circuit breaker open
	OutcomeRetryable CycleOutcome = "retryable" // transient exchange error
	OutcomeFatal     CycleOutcome = "fatal"
	OutcomeStopped   CycleOutcome = "stopped"
)

// CycleReport summarises one pass of the strategy loop.
type CycleReport struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Outcome    CycleOutcome `json:"outcome"`
	Quoted     int          `json:"quoted"`  // instruments with at least one order inserted
	Skipped    int          `json:"skipped"` // instruments skipped for no price / no quote
	Spot       float64      `json:"spot"`
	HedgeSpot  float64      `json:"hedge_spot,omitempty"` // primary mid re-read right before hedging
	Exposure   float64      `json:"exposure"`
	HedgeSide  Side         `json:"hedge_side,omitempty"`
	HedgeVol   int          `json:"hedge_volume,omitempty"`
	Error      string       `json:"error,omitempty"`
}
