package ports

import (
	"context"

	"github.com/betbot/deltamm/internal/domain"
)

// TradeHandler receives trade notifications drained during a quote refresh.
//
// NOTE: defined here so quoting does not depend on the journal package.
type TradeHandler interface {
	HandleTrades(ctx context.Context, trades []domain.Trade)
}

// HedgeHandler receives every hedge order the executor submits.
type HedgeHandler interface {
	HandleHedge(ctx context.Context, req domain.OrderRequest, orderID string, exposure float64)
}

// CycleRecorder receives a report after every strategy cycle.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, report domain.CycleReport)
}
