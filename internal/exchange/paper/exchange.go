// Package paper is an in-memory exchange used for dry runs and tests.
package paper

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/ports"
)

const priceEpsilon = 1e-9

var _ ports.Exchange = (*Exchange)(nil)

// Exchange keeps external liquidity, our resting orders and our positions.
// Immediate orders match against external liquidity only and never against our own orders.
type Exchange struct {
	mu sync.Mutex

	instruments map[string]domain.Instrument
	books       map[string]*domain.OrderBook
	orders      map[string]*domain.Order
	positions   domain.Positions
	trades      map[string][]domain.Trade
	inserted    []domain.OrderRequest

	// Call tracking
	calls map[string]int
	// Error injection
	errorOnNext map[string]error

	now func() time.Time
}

// New 创建空的纸面交易所
func New() *Exchange {
	return &Exchange{
		instruments: make(map[string]domain.Instrument),
		books:       make(map[string]*domain.OrderBook),
		orders:      make(map[string]*domain.Order),
		positions:   make(domain.Positions),
		trades:      make(map[string][]domain.Trade),
		calls:       make(map[string]int),
		errorOnNext: make(map[string]error),
		now:         time.Now,
	}
}

// SetClock replaces time.Now for trade timestamps.
func (e *Exchange) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// AddInstrument registers an instrument for ListInstruments.
func (e *Exchange) AddInstrument(inst domain.Instrument) error {
	if err := inst.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instruments[inst.ID] = inst
	return nil
}

// SetBook replaces the external liquidity of one instrument.
func (e *Exchange) SetBook(instrumentID string, bids, asks []domain.PriceLevel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := &domain.OrderBook{
		InstrumentID: instrumentID,
		Bids:         append([]domain.PriceLevel(nil), bids...),
		Asks:         append([]domain.PriceLevel(nil), asks...),
	}
	sortLevels(b)
	e.books[instrumentID] = b
}

// SetPosition overrides a position, for seeding scenarios.
func (e *Exchange) SetPosition(instrumentID string, volume int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[instrumentID] = volume
}

// FailNext makes the next call of method return err.
func (e *Exchange) FailNext(method string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errorOnNext[method] = err
}

// CallCount 返回方法被调用次数
func (e *Exchange) CallCount(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

// Inserted returns every accepted insert request in order.
func (e *Exchange) Inserted() []domain.OrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.OrderRequest(nil), e.inserted...)
}

func (e *Exchange) trackCall(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.calls[name]++
	if err, ok := e.errorOnNext[name]; ok {
		delete(e.errorOnNext, name)
		return err
	}
	return nil
}

func (e *Exchange) GetOrderBook(ctx context.Context, instrumentID string) (*domain.OrderBook, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.trackCall(ctx, "GetOrderBook"); err != nil {
		return nil, err
	}
	if _, ok := e.instruments[instrumentID]; !ok {
		if _, hasBook := e.books[instrumentID]; !hasBook {
			return nil, errors.Wrapf(domain.ErrUnknownInstrument, "order book %s", instrumentID)
		}
	}
	return e.snapshot(instrumentID), nil
}

// snapshot merges external liquidity with our resting orders.
func (e *Exchange) snapshot(instrumentID string) *domain.OrderBook {
	out := &domain.OrderBook{InstrumentID: instrumentID, Timestamp: e.now()}
	agg := map[domain.Side]map[float64]int{domain.SideBid: {}, domain.SideAsk: {}}
	if b, ok := e.books[instrumentID]; ok {
		for _, l := range b.Bids {
			agg[domain.SideBid][l.Price] += l.Volume
		}
		for _, l := range b.Asks {
			agg[domain.SideAsk][l.Price] += l.Volume
		}
	}
	for _, o := range e.orders {
		if o.InstrumentID == instrumentID {
			agg[o.Side][o.Price] += o.Volume
		}
	}
	for price, vol := range agg[domain.SideBid] {
		out.Bids = append(out.Bids, domain.PriceLevel{Price: price, Volume: vol})
	}
	for price, vol := range agg[domain.SideAsk] {
		out.Asks = append(out.Asks, domain.PriceLevel{Price: price, Volume: vol})
	}
	sortLevels(out)
	return out
}

func sortLevels(b *domain.OrderBook) {
	sort.Slice(b.Bids, func(i, j int) bool { return b.Bids[i].Price > b.Bids[j].Price })
	sort.Slice(b.Asks, func(i, j int) bool { return b.Asks[i].Price < b.Asks[j].Price })
}

func (e *Exchange) GetPositions(ctx context.Context) (domain.Positions, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.trackCall(ctx, "GetPositions"); err != nil {
		return nil, err
	}
	return e.positions.Clone(), nil
}

func (e *Exchange) GetOutstandingOrders(ctx context.Context, instrumentID string) (map[string]domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.trackCall(ctx, "GetOutstandingOrders"); err != nil {
		return nil, err
	}
	out := make(map[string]domain.Order)
	for id, o := range e.orders {
		if o.InstrumentID == instrumentID {
			out[id] = *o
		}
	}
	return out, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, instrumentID, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.trackCall(ctx, "CancelOrder"); err != nil {
		return err
	}
	o, ok := e.orders[orderID]
	if !ok || o.InstrumentID != instrumentID {
		return errors.Wrapf(domain.ErrOrderNotFound, "cancel %s/%s", instrumentID, orderID)
	}
	delete(e.orders, orderID)
	return nil
}

func (e *Exchange) InsertOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.trackCall(ctx, "InsertOrder"); err != nil {
		return "", err
	}
	e.inserted = append(e.inserted, req)

	id := uuid.NewString()
	remaining := e.matchExternal(id, req)
	if remaining > 0 && req.Type == domain.OrderTypeResting {
		e.orders[id] = &domain.Order{
			ID:           id,
			InstrumentID: req.InstrumentID,
			Side:         req.Side,
			Price:        req.Price,
			Volume:       remaining,
		}
	}
	return id, nil
}

// matchExternal crosses req against external liquidity and returns the unfilled volume.
func (e *Exchange) matchExternal(orderID string, req domain.OrderRequest) int {
	book, ok := e.books[req.InstrumentID]
	if !ok {
		return req.Volume
	}
	remaining := req.Volume
	levels := &book.Asks
	crosses := func(p float64) bool { return p <= req.Price+priceEpsilon }
	if req.Side == domain.SideAsk {
		levels = &book.Bids
		crosses = func(p float64) bool { return p >= req.Price-priceEpsilon }
	}
	for remaining > 0 && len(*levels) > 0 && crosses((*levels)[0].Price) {
		lvl := &(*levels)[0]
		qty := min(remaining, lvl.Volume)
		e.recordFill(orderID, req.InstrumentID, req.Side, lvl.Price, qty)
		remaining -= qty
		lvl.Volume -= qty
		if lvl.Volume == 0 {
			*levels = (*levels)[1:]
		}
	}
	return remaining
}

func (e *Exchange) recordFill(orderID, instrumentID string, side domain.Side, price float64, volume int) {
	t := domain.Trade{
		InstrumentID: instrumentID,
		OrderID:      orderID,
		Side:         side,
		Price:        price,
		Volume:       volume,
		Timestamp:    e.now(),
	}
	e.positions[instrumentID] += t.SignedVolume()
	e.trades[instrumentID] = append(e.trades[instrumentID], t)
}

// Fill simulates a counterparty trading against one of our resting orders.
func (e *Exchange) Fill(orderID string, volume int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return errors.Wrapf(domain.ErrOrderNotFound, "fill %s", orderID)
	}
	if volume <= 0 {
		return errors.Errorf("fill %s: volume must be > 0", orderID)
	}
	qty := min(volume, o.Volume)
	e.recordFill(orderID, o.InstrumentID, o.Side, o.Price, qty)
	o.Volume -= qty
	if o.Volume == 0 {
		delete(e.orders, orderID)
	}
	return nil
}

func (e *Exchange) PollTrades(ctx context.Context, instrumentID string) ([]domain.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.trackCall(ctx, "PollTrades"); err != nil {
		return nil, err
	}
	out := e.trades[instrumentID]
	delete(e.trades, instrumentID)
	return out, nil
}

func (e *Exchange) ListInstruments(ctx context.Context) (map[string]domain.Instrument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.trackCall(ctx, "ListInstruments"); err != nil {
		return nil, err
	}
	out := make(map[string]domain.Instrument, len(e.instruments))
	for id, inst := range e.instruments {
		out[id] = inst
	}
	return out, nil
}
