package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/signalcontrol/internal/controllers/restserver"
	"github.com/chrissnell/signalcontrol/internal/feed"
	"github.com/chrissnell/signalcontrol/internal/impact"
	"github.com/chrissnell/signalcontrol/internal/pipeline"
	"github.com/chrissnell/signalcontrol/internal/randengine"
	"github.com/chrissnell/signalcontrol/internal/types"
	"github.com/chrissnell/signalcontrol/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// components are the long-running parts wired from one configuration
type components struct {
	pipeline *pipeline.Controller
	rest     *restserver.Controller
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	c, err := a.build(ctx, &wg, cfg)
	if err != nil {
		return err
	}

	if err := c.pipeline.Start(); err != nil {
		return fmt.Errorf("error starting refresh loop: %w", err)
	}
	if err := c.rest.StartController(); err != nil {
		return fmt.Errorf("error starting REST server: %w", err)
	}

	a.logger.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}

// build wires the feed, estimator, pipeline and REST server without starting
// anything
func (a *App) build(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData) (*components, error) {
	timeout, err := cfg.Feed.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	interval, err := cfg.Controller.Interval()
	if err != nil {
		return nil, err
	}

	// one engine per consumer keeps a seeded run reproducible regardless of
	// how feed and estimator calls interleave
	seed := cfg.Controller.Seed
	feedRNG, impactRNG := randengine.New(seed), randengine.New(seed)
	if seed != 0 {
		impactRNG = randengine.New(seed + 1)
	}

	source := feed.New(feed.Options{
		URL:         cfg.Feed.URL,
		Timeout:     timeout,
		FallbackMin: cfg.Feed.FallbackMin,
		FallbackMax: cfg.Feed.FallbackMax,
	}, feedRNG, a.logger)
	if cfg.Feed.URL == "" {
		a.logger.Warn("feed.url not configured; generating randomized counts")
	}

	estimator := impact.NewEstimator(impactRNG, impact.DefaultModel)

	p := pipeline.NewController(ctx, wg, source, estimator, pipeline.Options{
		BaseSeconds:     cfg.Timing.BaseSeconds,
		BudgetSeconds:   cfg.Timing.BudgetSeconds,
		RefreshInterval: interval,
		Operator: types.OperatorState{
			Mode:           types.Mode(cfg.Controller.Mode),
			ManualApproach: types.Approach(cfg.Controller.ManualApproach),
		},
	}, a.logger)

	rest, err := restserver.NewController(ctx, wg, p, cfg.RESTServer, a.logger)
	if err != nil {
		return nil, fmt.Errorf("error creating REST server: %w", err)
	}

	return &components{pipeline: p, rest: rest}, nil
}
