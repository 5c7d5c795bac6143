// Package strategy runs the quote-and-hedge control loop.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/deltamm/internal/common"
	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/hedging"
	"github.com/betbot/deltamm/internal/marketdata"
	"github.com/betbot/deltamm/internal/metrics"
	"github.com/betbot/deltamm/internal/ports"
	"github.com/betbot/deltamm/internal/quoting"
	"github.com/betbot/deltamm/internal/risk"
	"github.com/betbot/deltamm/pkg/pricing"
)

// Option customises a Loop.
type Option func(*Loop)

func WithTradeHandler(h ports.TradeHandler) Option { return func(l *Loop) { l.trades = h } }
func WithHedgeHandler(h ports.HedgeHandler) Option { return func(l *Loop) { l.hedges = h } }
func WithCycleRecorder(r ports.CycleRecorder) Option {
	return func(l *Loop) { l.recorder = r }
}
func WithBreaker(cb *risk.CircuitBreaker) Option { return func(l *Loop) { l.breaker = cb } }
func WithModel(m ports.PricingModel) Option      { return func(l *Loop) { l.model = m } }
func WithClock(now func() time.Time) Option      { return func(l *Loop) { l.now = now } }

// Loop quotes every configured instrument group and hedges once per cycle.
// It is single-threaded: nothing overlaps inside a cycle.
type Loop struct {
	cfg Config
	ex  ports.Exchange

	model    ports.PricingModel
	breaker  *risk.CircuitBreaker
	trades   ports.TradeHandler
	hedges   ports.HedgeHandler
	recorder ports.CycleRecorder
	now      func() time.Time

	resolver   *marketdata.Resolver
	refresher  *quoting.Refresher
	aggregator *hedging.Aggregator
	executor   *hedging.Executor

	book    hedging.Book
	options []domain.Instrument
	futures []domain.Instrument

	mu     sync.RWMutex
	status Status

	log *logrus.Entry
}

// New validates cfg and wires the components. Call Init before Run.
func New(cfg Config, ex ports.Exchange, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "strategy config")
	}
	l := &Loop{
		cfg:   cfg,
		ex:    ex,
		model: pricing.BlackScholes{},
		now:   time.Now,
		log:   logrus.WithField("component", "strategy"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.breaker == nil {
		l.breaker = risk.NewCircuitBreaker(risk.CircuitBreakerConfig{MaxConsecutiveErrors: cfg.MaxConsecutiveErrors})
	}
	l.resolver = marketdata.NewResolver(ex, cfg.Resolver)
	l.refresher = quoting.NewRefresher(ex, l.resolver, l.trades)
	l.aggregator = hedging.NewAggregator(l.model, cfg.proxySensitivities())
	l.executor = hedging.NewExecutor(ex, l.hedges)
	return l, nil
}

// Breaker exposes the circuit breaker for the control plane.
func (l *Loop) Breaker() *risk.CircuitBreaker { return l.breaker }

// Init loads the instrument universe once. Instruments are immutable afterwards.
func (l *Loop) Init(ctx context.Context) error {
	all, err := l.ex.ListInstruments(ctx)
	if err != nil {
		return errors.Wrap(err, "list instruments")
	}
	for _, inst := range all {
		if err := inst.Validate(); err != nil {
			return err
		}
	}
	if _, ok := all[l.cfg.PrimaryID]; !ok {
		return errors.Wrapf(domain.ErrUnknownInstrument, "primary %s", l.cfg.PrimaryID)
	}
	if l.cfg.ProxyID != "" {
		if _, ok := all[l.cfg.ProxyID]; !ok {
			return errors.Wrapf(domain.ErrUnknownInstrument, "proxy %s", l.cfg.ProxyID)
		}
	}
	for _, id := range l.cfg.Secondaries {
		if _, ok := all[id]; !ok {
			return errors.Wrapf(domain.ErrUnknownInstrument, "secondary %s", id)
		}
	}

	var book hedging.Book
	for _, inst := range all {
		if inst.BaseID != l.cfg.PrimaryID {
			continue
		}
		switch inst.Kind {
		case domain.KindOption:
			book.Options = append(book.Options, inst)
		case domain.KindFuture:
			book.Futures = append(book.Futures, inst)
		case domain.KindProxy:
			book.Proxies = append(book.Proxies, inst)
		}
	}
	if l.cfg.ProxyID != "" && all[l.cfg.ProxyID].Kind != domain.KindProxy {
		book.Proxies = append(book.Proxies, all[l.cfg.ProxyID])
	}
	byID := func(list []domain.Instrument) {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	byID(book.Options)
	byID(book.Futures)
	byID(book.Proxies)

	l.book = book
	l.options = book.Options
	l.futures = book.Futures
	l.log.WithFields(logrus.Fields{
		"primary": l.cfg.PrimaryID,
		"options": len(book.Options),
		"futures": len(book.Futures),
		"proxies": len(book.Proxies),
	}).Info("instruments loaded")
	return nil
}

// Run cycles until ctx ends or a fatal error occurs.
// Returns nil on user termination and the fatal error otherwise.
func (l *Loop) Run(ctx context.Context) error {
	l.setRunning(true)
	defer l.setRunning(false)

	for {
		report, err := l.RunCycle(ctx)
		class := Classify(err)
		switch class {
		case ClassNone:
			if report.Outcome != domain.OutcomeHalted {
				l.breaker.OnSuccess()
			}
		case ClassStopped:
			report.Outcome = domain.OutcomeStopped
			l.finish(ctx, report, err)
			l.log.Info("strategy loop stopped")
			return nil
		case ClassNoPrice:
			// already counted where it happened
		case ClassRetryable:
			report.Outcome = domain.OutcomeRetryable
			metrics.RetryableErrors.Add(1)
			l.breaker.OnError()
			l.log.WithError(err).WithField("cycle", report.ID).Warn("retryable error, cycle aborted")
		case ClassFatal:
			report.Outcome = domain.OutcomeFatal
			metrics.CycleErrors.Add(1)
			l.finish(ctx, report, err)
			l.log.WithError(err).WithFields(logrus.Fields{
				"cycle":      report.ID,
				"error_type": fmt.Sprintf("%T", errors.Cause(err)),
			}).Error("unexpected error, stopping strategy loop")
			return err
		}
		l.finish(ctx, report, err)

		if err := common.Sleep(ctx, l.cfg.CycleInterval); err != nil {
			l.log.Info("strategy loop stopped")
			return nil
		}
	}
}

// RunCycle quotes secondaries, the primary group, options and futures, then hedges.
func (l *Loop) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	report := domain.CycleReport{ID: uuid.NewString(), StartedAt: l.now(), Outcome: domain.OutcomeOK}
	metrics.Cycles.Add(1)
	log := l.log.WithField("cycle", report.ID)

	if err := l.breaker.AllowTrading(); err != nil {
		metrics.BreakerSkips.Add(1)
		report.Outcome = domain.OutcomeHalted
		log.WithField("breaker", l.breaker.State()).Warn("circuit breaker open, no order mutation this cycle")
		return report, nil
	}

	for _, id := range l.cfg.Secondaries {
		fv, err := l.resolver.ResolveLenient(ctx, id)
		if err := l.quote(ctx, &report, id, fv, err); err != nil {
			return report, err
		}
	}

	spot, err := l.resolver.ResolveStrict(ctx, l.cfg.PrimaryID, l.cfg.MaxSpread)
	if Classify(err) == ClassNoPrice {
		metrics.NoPriceSkips.Add(1)
		report.Outcome = domain.OutcomeNoPrice
		log.WithError(err).Info("primary has no price, skipping primary group, derivatives and hedge")
		return report, nil
	}
	if err != nil {
		return report, err
	}
	report.Spot = spot

	if l.cfg.QuotePrimary {
		if err := l.quote(ctx, &report, l.cfg.PrimaryID, spot, nil); err != nil {
			return report, err
		}
	}
	if l.cfg.ProxyID != "" {
		if err := l.quote(ctx, &report, l.cfg.ProxyID, spot, nil); err != nil {
			return report, err
		}
	}

	now := l.now()
	for i, opt := range l.options {
		t := opt.TimeToExpiry(now)
		if t <= 0 {
			continue
		}
		fv := l.model.FairValue(opt.OptionKind, spot, opt.Strike, t, l.cfg.Rate, l.cfg.Volatility)
		if err := l.quote(ctx, &report, opt.ID, fv, nil); err != nil {
			return report, err
		}
		if i < len(l.options)-1 {
			if err := common.Sleep(ctx, l.cfg.OptionPacing); err != nil {
				return report, err
			}
		}
	}
	for _, fut := range l.futures {
		t := fut.TimeToExpiry(now)
		if t <= 0 {
			continue
		}
		fv := l.model.FutureFairValue(spot, t, l.cfg.Rate)
		if err := l.quote(ctx, &report, fut.ID, fv, nil); err != nil {
			return report, err
		}
	}

	// quoting took a while; hedge against a fresh reference
	hedgeSpot, err := l.resolver.ResolveStrict(ctx, l.cfg.PrimaryID, l.cfg.MaxSpread)
	if Classify(err) == ClassNoPrice {
		metrics.NoPriceSkips.Add(1)
		log.WithError(err).Info("primary lost its price before hedging, hedge skipped this cycle")
		return report, nil
	}
	if err != nil {
		return report, err
	}
	report.HedgeSpot = hedgeSpot

	if err := l.hedge(ctx, &report, hedgeSpot, l.now()); err != nil {
		return report, err
	}
	return report, nil
}

// quote refreshes one instrument. No-price/no-quote outcomes only skip the instrument.
func (l *Loop) quote(ctx context.Context, report *domain.CycleReport, instrumentID string, fairValue float64, resolveErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := resolveErr
	var res quoting.Result
	if err == nil {
		res, err = l.refresher.Refresh(ctx, instrumentID, fairValue, l.cfg.QuoteParams(instrumentID))
	}
	if Classify(err) == ClassNoPrice {
		if errors.Is(err, domain.ErrNoPrice) {
			metrics.NoPriceSkips.Add(1)
		}
		report.Skipped++
		l.log.WithError(err).WithField("instrument", instrumentID).Debug("no quote this cycle")
		return nil
	}
	if err != nil {
		return err
	}
	if len(res.Inserted) > 0 {
		report.Quoted++
	}
	return nil
}

func (l *Loop) hedge(ctx context.Context, report *domain.CycleReport, spot float64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	positions, err := l.ex.GetPositions(ctx)
	if err != nil {
		return errors.Wrap(err, "get positions for hedge")
	}
	m := hedging.Market{Spot: spot, Rate: l.cfg.Rate, Vol: l.cfg.Volatility, Now: now}
	exposure, parts := l.aggregator.Aggregate(positions, l.book, m)
	report.Exposure = exposure
	metrics.LastExposure.Set(exposure)
	if l.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		for _, c := range parts {
			l.log.WithFields(logrus.Fields{
				"cycle":       report.ID,
				"instrument":  c.InstrumentID,
				"position":    c.Position,
				"sensitivity": c.Sensitivity,
				"exposure":    c.Exposure,
			}).Debug("exposure contribution")
		}
	}

	d, err := l.executor.Hedge(ctx, l.cfg.HedgeParams(), exposure, positions.Get(l.cfg.PrimaryID), spot)
	if err != nil {
		return err
	}
	if d.Acted() {
		report.HedgeSide = d.Side
		report.HedgeVol = d.Volume
	}
	return nil
}

func (l *Loop) finish(ctx context.Context, report domain.CycleReport, err error) {
	report.FinishedAt = l.now()
	if err != nil {
		report.Error = err.Error()
	}
	l.updateStatus(report)
	if l.recorder != nil {
		// recording must not be skipped because ctx ended
		l.recorder.RecordCycle(context.WithoutCancel(ctx), report)
	}
}
