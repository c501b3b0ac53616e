package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/config"
	"github.com/jmehdipour/billing-sandbox/internal/logger"
	"github.com/jmehdipour/billing-sandbox/internal/metrics"
)

// setup loads config, builds the logger and registers metrics for one-shot
// commands. The returned context is cancelled on SIGINT/SIGTERM.
func setup() (config.Config, *zap.Logger, context.Context, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cleanup := func() {
		stop()
		_ = log.Sync()
	}
	return cfg, log, ctx, cleanup, nil
}
