package strategy

import (
	"time"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/risk"
)

// Status is what the control plane reports.
type Status struct {
	Running     bool                `json:"running"`
	Cycles      int64               `json:"cycles"`
	LastCycleID string              `json:"last_cycle_id,omitempty"`
	LastCycleAt time.Time           `json:"last_cycle_at,omitempty"`
	LastOutcome domain.CycleOutcome `json:"last_outcome,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
	Spot        float64             `json:"spot"`
	Exposure    float64             `json:"exposure"`
	Quoted      int                 `json:"quoted"`
	Skipped     int                 `json:"skipped"`
	Breaker     risk.State          `json:"breaker"`
}

// Status returns a snapshot.
func (l *Loop) Status() Status {
	l.mu.RLock()
	st := l.status
	l.mu.RUnlock()
	st.Breaker = l.breaker.State()
	return st
}

func (l *Loop) setRunning(running bool) {
	l.mu.Lock()
	l.status.Running = running
	l.mu.Unlock()
}

func (l *Loop) updateStatus(r domain.CycleReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Cycles++
	l.status.LastCycleID = r.ID
	l.status.LastCycleAt = r.FinishedAt
	l.status.LastOutcome = r.Outcome
	l.status.LastError = r.Error
	l.status.Quoted = r.Quoted
	l.status.Skipped = r.Skipped
	if r.Spot > 0 {
		l.status.Spot = r.Spot
		l.status.Exposure = r.Exposure
	}
}
