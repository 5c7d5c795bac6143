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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/deltamm/internal/exchange/paper"
	"github.com/betbot/deltamm/internal/exchange/simserver"
	"github.com/betbot/deltamm/pkg/logger"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		listenAddr = flag.String("listen", getenv("MM_SIM_LISTEN", ":8081"), "HTTP listen address")
		seedPath   = flag.String("seed", getenv("MM_SIM_SEED", ""), "seed file with instruments, books and positions")
		logLevel   = flag.String("log-level", getenv("MM_LOG_LEVEL", "info"), "log level")
	)
	flag.Parse()

	_ = logger.Init(logger.Config{Level: *logLevel})

	ex := paper.New()
	if *seedPath != "" {
		seed, err := paper.LoadSeed(*seedPath)
		if err != nil {
			logrus.Errorf("load seed failed: %v", err)
			os.Exit(1)
		}
		if err := seed.Apply(ex); err != nil {
			logrus.Errorf("apply seed failed: %v", err)
			os.Exit(1)
		}
	}

	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           simserver.New(ex).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logrus.Infof("exchange simulator listening on %s", *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)

	logger.WithFields(logrus.Fields{"addr": *listenAddr}).Info("exchange simulator stopped")
}
