package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/journal"
	"github.com/betbot/deltamm/internal/risk"
	"github.com/betbot/deltamm/internal/strategy"
)

type fixedStatus strategy.Status

func (f fixedStatus) Status() strategy.Status { return strategy.Status(f) }

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthAndStatus(t *testing.T) {
	h := New(fixedStatus{Running: true, Cycles: 7, Spot: 100}, risk.NewCircuitBreaker(risk.CircuitBreakerConfig{}), nil).Router()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz").Code)

	rec := do(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var st strategy.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Running)
	assert.Equal(t, int64(7), st.Cycles)
	assert.Equal(t, 100.0, st.Spot)
}

func TestHaltResume(t *testing.T) {
	cb := risk.NewCircuitBreaker(risk.CircuitBreakerConfig{})
	h := New(fixedStatus{}, cb, nil).Router()

	rec := do(t, h, http.MethodPost, "/api/halt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ErrorIs(t, cb.AllowTrading(), risk.ErrCircuitBreakerOpen)
	var st risk.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.ManualHalt)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/resume").Code)
	assert.NoError(t, cb.AllowTrading())
}

func TestHistoryDisabled(t *testing.T) {
	h := New(fixedStatus{}, nil, nil).Router()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/fills").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/cycles").Code)
}

func TestHistoryFromJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()
	now := time.Now()
	j.HandleTrades(ctx, []domain.Trade{
		{InstrumentID: "C100", OrderID: "a", Side: domain.SideBid, Price: 5, Volume: 1, Timestamp: now},
		{InstrumentID: "F1", OrderID: "b", Side: domain.SideAsk, Price: 101, Volume: 2, Timestamp: now},
	})
	j.RecordCycle(ctx, domain.CycleReport{ID: "c1", StartedAt: now, FinishedAt: now, Outcome: domain.OutcomeNoPrice})
	j.HandleHedge(ctx, domain.OrderRequest{InstrumentID: "SPOT", Side: domain.SideBid, Price: 100.2, Volume: 3, Type: domain.OrderTypeImmediate}, "h", -3.2)

	h := New(fixedStatus{}, nil, j).Router()

	rec := do(t, h, http.MethodGet, "/api/fills?instrument=F1")
	require.Equal(t, http.StatusOK, rec.Code)
	var fills struct {
		Fills []journal.Fill `json:"fills"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fills))
	require.Len(t, fills.Fills, 1)
	assert.Equal(t, "b", fills.Fills[0].OrderID)

	rec = do(t, h, http.MethodGet, "/api/cycles?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var cycles struct {
		Cycles []domain.CycleReport `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cycles))
	require.Len(t, cycles.Cycles, 1)
	assert.Equal(t, domain.OutcomeNoPrice, cycles.Cycles[0].Outcome)

	rec = do(t, h, http.MethodGet, "/api/hedges")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order_id":"h"`)
}
