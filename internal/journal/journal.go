// Package journal keeps a write-only SQLite audit trail of fills, hedges and cycles.
// Nothing in it is read back into engine state.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/ports"
)

var (
	_ ports.TradeHandler  = (*Journal)(nil)
	_ ports.HedgeHandler  = (*Journal)(nil)
	_ ports.CycleRecorder = (*Journal)(nil)
)

const writeTimeout = 2 * time.Second

type Journal struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open creates the database file and schema if needed.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir journal dir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, log: logrus.WithField("component", "journal")}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS fills (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  instrument_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  side TEXT NOT NULL,
  price REAL NOT NULL,
  volume INTEGER NOT NULL,
  ts TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_fills_instrument_ts ON fills(instrument_id, ts DESC);`,
		`
CREATE TABLE IF NOT EXISTS hedges (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  instrument_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  side TEXT NOT NULL,
  price REAL NOT NULL,
  volume INTEGER NOT NULL,
  exposure REAL NOT NULL,
  ts TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS cycles (
  id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  outcome TEXT NOT NULL,
  quoted INTEGER NOT NULL,
  skipped INTEGER NOT NULL,
  spot REAL NOT NULL,
  exposure REAL NOT NULL,
  hedge_side TEXT,
  hedge_volume INTEGER NOT NULL DEFAULT 0,
  error TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "journal migrate")
		}
	}
	return nil
}

// HandleTrades 记录成交
func (j *Journal) HandleTrades(ctx context.Context, trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		j.log.WithError(err).Warn("journal fills: begin")
		return
	}
	defer func() { _ = tx.Rollback() }()
	for _, t := range trades {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fills(instrument_id, order_id, side, price, volume, ts) VALUES(?,?,?,?,?,?)`,
			t.InstrumentID, t.OrderID, string(t.Side), t.Price, t.Volume, formatTime(t.Timestamp),
		); err != nil {
			j.log.WithError(err).WithField("instrument", t.InstrumentID).Warn("journal fills: insert")
			return
		}
	}
	if err := tx.Commit(); err != nil {
		j.log.WithError(err).Warn("journal fills: commit")
	}
}

// HandleHedge 记录对冲单
func (j *Journal) HandleHedge(ctx context.Context, req domain.OrderRequest, orderID string, exposure float64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO hedges(instrument_id, order_id, side, price, volume, exposure, ts) VALUES(?,?,?,?,?,?,?)`,
		req.InstrumentID, orderID, string(req.Side), req.Price, req.Volume, exposure, formatTime(time.Now()),
	); err != nil {
		j.log.WithError(err).WithField("order_id", orderID).Warn("journal hedge: insert")
	}
}

// RecordCycle 记录周期结果
func (j *Journal) RecordCycle(ctx context.Context, r domain.CycleReport) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if _, err := j.db.ExecContext(ctx, `
INSERT INTO cycles(id, started_at, finished_at, outcome, quoted, skipped, spot, exposure, hedge_side, hedge_volume, error)
VALUES(?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET finished_at=excluded.finished_at, outcome=excluded.outcome, error=excluded.error`,
		r.ID, formatTime(r.StartedAt), formatTime(r.FinishedAt), string(r.Outcome), r.Quoted, r.Skipped,
		r.Spot, r.Exposure, nullString(string(r.HedgeSide)), r.HedgeVol, nullString(r.Error),
	); err != nil {
		j.log.WithError(err).WithField("cycle", r.ID).Warn("journal cycle: insert")
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
