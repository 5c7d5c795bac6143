package journal

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/betbot/deltamm/internal/domain"
)

// Fill is one journaled trade notification.
type Fill struct {
	ID           int64   `json:"id"`
	InstrumentID string  `json:"instrument_id"`
	OrderID      string  `json:"order_id"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Volume       int     `json:"volume"`
	Timestamp    string  `json:"ts"`
}

// Hedge is one journaled hedge order.
type Hedge struct {
	ID           int64   `json:"id"`
	InstrumentID string  `json:"instrument_id"`
	OrderID      string  `json:"order_id"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Volume       int     `json:"volume"`
	Exposure     float64 `json:"exposure"`
	Timestamp    string  `json:"ts"`
}

// RecentFills returns the newest fills first, optionally for one instrument.
func (j *Journal) RecentFills(ctx context.Context, instrumentID string, limit int) ([]Fill, error) {
	q := `SELECT id, instrument_id, order_id, side, price, volume, ts FROM fills`
	args := []any{}
	if instrumentID != "" {
		q += ` WHERE instrument_id = ?`
		args = append(args, instrumentID)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query fills")
	}
	defer rows.Close()
	out := []Fill{}
	for rows.Next() {
		var f Fill
		if err := rows.Scan(&f.ID, &f.InstrumentID, &f.OrderID, &f.Side, &f.Price, &f.Volume, &f.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan fill")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RecentHedges returns the newest hedge orders first.
func (j *Journal) RecentHedges(ctx context.Context, limit int) ([]Hedge, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, instrument_id, order_id, side, price, volume, exposure, ts FROM hedges ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query hedges")
	}
	defer rows.Close()
	out := []Hedge{}
	for rows.Next() {
		var h Hedge
		if err := rows.Scan(&h.ID, &h.InstrumentID, &h.OrderID, &h.Side, &h.Price, &h.Volume, &h.Exposure, &h.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan hedge")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// RecentCycles returns the newest cycle reports first.
func (j *Journal) RecentCycles(ctx context.Context, limit int) ([]domain.CycleReport, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, outcome, quoted, skipped, spot, exposure, hedge_side, hedge_volume, error
FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query cycles")
	}
	defer rows.Close()
	out := []domain.CycleReport{}
	for rows.Next() {
		var (
			r                 domain.CycleReport
			started, finished string
			outcome           string
			hedgeSide, errMsg sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &outcome, &r.Quoted, &r.Skipped, &r.Spot, &r.Exposure, &hedgeSide, &r.HedgeVol, &errMsg); err != nil {
			return nil, errors.Wrap(err, "scan cycle")
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		r.Outcome = domain.CycleOutcome(outcome)
		r.HedgeSide = domain.Side(hedgeSide.String)
		r.Error = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}
