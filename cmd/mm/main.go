package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/deltamm/internal/controlplane/api"
	"github.com/betbot/deltamm/internal/exchange/paper"
	"github.com/betbot/deltamm/internal/exchange/rest"
	"github.com/betbot/deltamm/internal/journal"
	"github.com/betbot/deltamm/internal/metrics"
	"github.com/betbot/deltamm/internal/ports"
	"github.com/betbot/deltamm/internal/risk"
	"github.com/betbot/deltamm/internal/strategy"
	"github.com/betbot/deltamm/pkg/config"
	"github.com/betbot/deltamm/pkg/logger"
	"github.com/betbot/deltamm/pkg/shutdown"
)

func main() {
	var (
		configPath = flag.String("config", "yml/mm.yaml", "config file (.yaml/.yml/.json)")
		usePaper   = flag.Bool("paper", false, "use an in-memory paper exchange instead of REST")
		seedPath   = flag.String("seed", "", "paper exchange seed file (with -paper)")
	)
	flag.Parse()

	_ = logger.InitDefault()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		logrus.Errorf("初始化日志失败: %v", err)
		os.Exit(1)
	}

	if err := run(cfg, *usePaper, *seedPath); err != nil {
		logrus.Errorf("mm exited: %v", err)
		_ = logger.Close()
		os.Exit(1)
	}
	_ = logger.Close()
}

func run(cfg *config.Config, usePaper bool, seedPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sm := shutdown.NewManager()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sm.Shutdown(shutdownCtx)
	}()

	ex, err := newExchange(cfg, usePaper, seedPath)
	if err != nil {
		return err
	}

	breaker := risk.NewCircuitBreaker(risk.CircuitBreakerConfig{MaxConsecutiveErrors: cfg.Risk.MaxConsecutiveErrors})
	opts := []strategy.Option{strategy.WithBreaker(breaker)}

	var history api.History
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		sm.OnShutdown("journal", func(context.Context) error { return j.Close() })
		history = j
		opts = append(opts,
			strategy.WithTradeHandler(j),
			strategy.WithHedgeHandler(j),
			strategy.WithCycleRecorder(j),
		)
	}

	loop, err := strategy.New(strategyConfig(cfg), ex, opts...)
	if err != nil {
		return err
	}
	if err := loop.Init(ctx); err != nil {
		return err
	}

	if cfg.Metrics.Listen != "" {
		if _, err := metrics.StartAsync(ctx, cfg.Metrics.Listen, func(err error) {
			logrus.WithError(err).Warn("metrics server stopped")
		}); err != nil {
			return err
		}
		logrus.Infof("metrics listening on %s", cfg.Metrics.Listen)
	}

	if cfg.Control.Listen != "" {
		httpSrv := &http.Server{
			Addr:              cfg.Control.Listen,
			Handler:           api.New(loop, breaker, history).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logrus.Infof("controlplane listening on %s", cfg.Control.Listen)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("controlplane server error")
			}
		}()
		sm.OnShutdown("controlplane", httpSrv.Shutdown)
	}

	logger.WithFields(logrus.Fields{
		"primary": cfg.Underlying.Primary,
		"paper":   usePaper,
	}).Info("market maker started")
	return loop.Run(ctx)
}

func newExchange(cfg *config.Config, usePaper bool, seedPath string) (ports.Exchange, error) {
	if !usePaper {
		if cfg.Exchange.URL == "" {
			return nil, errors.New("exchange.url is required without -paper")
		}
		return rest.NewClient(cfg.Exchange.URL, rest.Options{
			Timeout:           cfg.Exchange.Timeout.D(),
			RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
			RetryCount:        2,
		}), nil
	}
	ex := paper.New()
	if seedPath == "" {
		return ex, nil
	}
	seed, err := paper.LoadSeed(seedPath)
	if err != nil {
		return nil, err
	}
	if err := seed.Apply(ex); err != nil {
		return nil, err
	}
	return ex, nil
}
