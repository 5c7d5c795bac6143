package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMuxServesPrometheus(t *testing.T) {
	before := testutil.ToFloat64(Cycles)
	Cycles.Add(1)
	if got := testutil.ToFloat64(Cycles); got != before+1 {
		t.Fatalf("Cycles got=%v want=%v", got, before+1)
	}
	LastExposure.Set(-12.5)

	rec := httptest.NewRecorder()
	newMux().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status got=%d want=200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"mm_cycles_total", "mm_hedge_orders_total", "mm_last_exposure -12.5"} {
		if !strings.Contains(body, name) {
			t.Fatalf("%q missing from /metrics", name)
		}
	}
}

func TestMuxServesPprof(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux().ServeHTTP(rec, httptest.NewRequest("GET", "/debug/pprof/", nil))
	if rec.Code != 200 {
		t.Fatalf("status got=%d want=200", rec.Code)
	}
}
