// Package marketdata turns live order books into usable reference prices.
package marketdata

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/betbot/deltamm/internal/common"
	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/metrics"
	"github.com/betbot/deltamm/internal/ports"
	"github.com/betbot/deltamm/pkg/marketmath"
)

// Config 重试节奏
type Config struct {
	// LiquidityRetry is the wait between strict resolutions of a too-wide book.
	LiquidityRetry time.Duration
	// LevelRetry is the wait between fetches of a missing or malformed book.
	LevelRetry time.Duration
	// MaxLiquidityRetries bounds the wide-book retries; 0 waits until ctx ends.
	MaxLiquidityRetries int
}

// DefaultConfig matches the exchange pacing the engine was tuned for.
func DefaultConfig() Config {
	return Config{
		LiquidityRetry: 200 * time.Millisecond,
		LevelRetry:     100 * time.Millisecond,
	}
}

// Resolver derives reference prices from fresh order books. It never caches a book.
type Resolver struct {
	books ports.OrderBookGetter
	cfg   Config
	log   *logrus.Entry
	warn  rate.Sometimes // 宽盘口告警限频
}

func NewResolver(books ports.OrderBookGetter, cfg Config) *Resolver {
	return &Resolver{
		books: books,
		cfg:   cfg,
		log:   logrus.WithField("component", "marketdata"),
		warn:  rate.Sometimes{Interval: 5 * time.Second},
	}
}

// ResolveStrict returns the mid of a book whose spread is within maxSpread.
//
// An empty side is domain.ErrNoPrice. A wider book is re-fetched every
// LiquidityRetry until it tightens, ctx ends, or MaxLiquidityRetries is hit.
func (r *Resolver) ResolveStrict(ctx context.Context, instrumentID string, maxSpread float64) (float64, error) {
	var mid float64
	err := common.RetryUntil(ctx, r.cfg.LiquidityRetry, r.cfg.MaxLiquidityRetries, func(attempt int) (bool, error) {
		tob, err := r.topOfBook(ctx, instrumentID)
		if err != nil {
			return false, err
		}
		if spread := tob.Spread(); spread > maxSpread {
			metrics.LiquidityRetries.Add(1)
			r.warn.Do(func() {
				r.log.WithFields(logrus.Fields{
					"instrument": instrumentID,
					"spread":     spread,
					"max_spread": maxSpread,
					"attempt":    attempt,
				}).Warn("book too wide, waiting for liquidity")
			})
			return false, nil
		}
		mid = tob.Mid()
		return true, nil
	})
	if errors.Is(err, common.ErrRetriesExhausted) {
		return 0, errors.Wrapf(domain.ErrNoPrice, "%s: spread above %v after %d attempts", instrumentID, maxSpread, r.cfg.MaxLiquidityRetries)
	}
	if err != nil {
		return 0, err
	}
	return mid, nil
}

// ResolveLenient returns the mid whenever both sides are present, whatever the spread.
func (r *Resolver) ResolveLenient(ctx context.Context, instrumentID string) (float64, error) {
	tob, err := r.topOfBook(ctx, instrumentID)
	if err != nil {
		return 0, err
	}
	return tob.Mid(), nil
}

// ResolveBest returns best bid and best ask together.
func (r *Resolver) ResolveBest(ctx context.Context, instrumentID string) (marketmath.TopOfBook, error) {
	return r.topOfBook(ctx, instrumentID)
}

// ResolveBestSide returns the best price of one side.
func (r *Resolver) ResolveBestSide(ctx context.Context, instrumentID string, side domain.Side) (float64, error) {
	book, err := r.fetch(ctx, instrumentID)
	if err != nil {
		return 0, err
	}
	best, ok := book.BestBid()
	if side == domain.SideAsk {
		best, ok = book.BestAsk()
	}
	if !ok {
		return 0, errors.Wrapf(domain.ErrNoPrice, "%s: %s side empty", instrumentID, side)
	}
	return best, nil
}

func (r *Resolver) topOfBook(ctx context.Context, instrumentID string) (marketmath.TopOfBook, error) {
	book, err := r.fetch(ctx, instrumentID)
	if err != nil {
		return marketmath.TopOfBook{}, err
	}
	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()
	if !okBid || !okAsk {
		return marketmath.TopOfBook{}, errors.Wrapf(domain.ErrNoPrice, "%s: one-sided book (bids=%d asks=%d)", instrumentID, len(book.Bids), len(book.Asks))
	}
	tob := marketmath.TopOfBook{Bid: bid, Ask: ask}
	if err := tob.Validate(); err != nil {
		return marketmath.TopOfBook{}, errors.Wrapf(domain.ErrNoPrice, "%s: %v", instrumentID, err)
	}
	return tob, nil
}

// fetch retries missing books and transient errors every LevelRetry until ctx ends.
// Any other error is returned as is.
func (r *Resolver) fetch(ctx context.Context, instrumentID string) (*domain.OrderBook, error) {
	var book *domain.OrderBook
	err := common.RetryUntil(ctx, r.cfg.LevelRetry, 0, func(attempt int) (bool, error) {
		b, err := r.books.GetOrderBook(ctx, instrumentID)
		switch {
		case err != nil && domain.IsTransient(err):
			metrics.LevelRetries.Add(1)
			r.log.WithError(err).WithField("instrument", instrumentID).Debug("order book unavailable, retrying")
			return false, nil
		case err != nil:
			return false, errors.Wrapf(err, "get order book %s", instrumentID)
		case b == nil || !sane(b):
			metrics.LevelRetries.Add(1)
			r.log.WithField("instrument", instrumentID).Debug("malformed order book, retrying")
			return false, nil
		}
		book = b
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// sane rejects levels with non-positive price or volume.
func sane(b *domain.OrderBook) bool {
	for _, l := range b.Bids {
		if l.Price <= 0 || l.Volume <= 0 {
			return false
		}
	}
	for _, l := range b.Asks {
		if l.Price <= 0 || l.Volume <= 0 {
			return false
		}
	}
	return true
}
