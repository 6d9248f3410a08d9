// Package pipeline runs the refresh cycle: fetch counts, allocate green time,
// pick the active approach and estimate impact.  Each cycle is computed from
// its own snapshot; the operator's mode and manual choice are the only state
// carried from one cycle to the next.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/signalcontrol/internal/feed"
	"github.com/chrissnell/signalcontrol/internal/impact"
	"github.com/chrissnell/signalcontrol/internal/timing"
	"github.com/chrissnell/signalcontrol/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options holds the timing parameters and refresh cadence
type Options struct {
	BaseSeconds     int
	BudgetSeconds   int
	RefreshInterval time.Duration
	Operator        types.OperatorState
}

// Controller owns the refresh loop and the latest computed cycle
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	source    feed.Source
	estimator *impact.Estimator
	opts      Options
	logger    *zap.SugaredLogger

	mu       sync.RWMutex
	operator types.OperatorState
	latest   *types.Cycle
}

// NewController creates a refresh controller
func NewController(ctx context.Context, wg *sync.WaitGroup, source feed.Source, estimator *impact.Estimator, opts Options, logger *zap.SugaredLogger) *Controller {
	if opts.Operator.Mode == "" {
		opts.Operator.Mode = types.ModeAI
	}
	return &Controller{
		ctx:       ctx,
		wg:        wg,
		source:    source,
		estimator: estimator,
		opts:      opts,
		logger:    logger.Named("pipeline"),
		operator:  opts.Operator,
	}
}

// Start runs one cycle immediately and then one per refresh interval until
// the controller's context is cancelled
func (c *Controller) Start() error {
	if c.opts.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %v", c.opts.RefreshInterval)
	}

	c.logger.Infow("Starting refresh loop",
		"interval", c.opts.RefreshInterval,
		"base", c.opts.BaseSeconds,
		"budget", c.opts.BudgetSeconds,
		"mode", c.Operator().Mode)

	c.wg.Add(1)
	go c.refreshLoop()

	return nil
}

func (c *Controller) refreshLoop() {
	defer c.wg.Done()

	c.runLogged()

	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Refresh loop stopped")
			return
		case <-ticker.C:
			c.runLogged()
		}
	}
}

func (c *Controller) runLogged() {
	if _, err := c.RunCycle(c.ctx); err != nil {
		c.logger.Errorw("Refresh cycle failed", "error", err)
	}
}

// RunCycle performs one full pass of the pipeline, stores the result as the
// latest cycle and returns it
func (c *Controller) RunCycle(ctx context.Context) (*types.Cycle, error) {
	snapshot := c.source.Fetch(ctx)

	plan, err := timing.Allocate(snapshot, c.opts.BaseSeconds, c.opts.BudgetSeconds)
	if err != nil {
		// the source guarantees a usable snapshot, so this is a defect upstream
		return nil, fmt.Errorf("allocating green time: %w", err)
	}

	cycle := &types.Cycle{
		ID:         uuid.New(),
		ComputedAt: time.Now(),
		Snapshot:   snapshot,
		Plan:       plan,
		Impact:     c.estimator.Estimate(snapshot, plan),
	}

	c.store(cycle)

	c.logger.Debugw("Cycle computed",
		"cycle", cycle.ID,
		"origin", snapshot.Origin,
		"counts", snapshot.Counts,
		"plan", plan,
		"active", cycle.Signal.Active,
		"mode", cycle.Signal.Mode,
		"waiting_units", cycle.Impact.WaitingUnits)

	return cycle, nil
}

// store selects the cycle's signal under the operator state current at
// publish time and keeps the newest cycle.  An overlapping refresh that
// finishes late does not replace a cycle computed after it.
func (c *Controller) store(cycle *types.Cycle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cycle.Signal = timing.SelectState(cycle.Plan, c.operator)
	if c.latest != nil && c.latest.ComputedAt.After(cycle.ComputedAt) {
		return
	}
	c.latest = cycle
}

// Latest returns the most recent cycle, if one has been computed
func (c *Controller) Latest() (*types.Cycle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.latest != nil
}

// Operator returns the current operator state
func (c *Controller) Operator() types.OperatorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operator
}

// SetOperator replaces the operator state and re-selects the active approach
// on the latest plan right away.  The approach is not validated here.
func (c *Controller) SetOperator(op types.OperatorState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operator = op
	if c.latest == nil {
		return
	}

	// cycles handed out earlier are never mutated
	updated := *c.latest
	updated.Signal = timing.SelectState(updated.Plan, op)
	c.latest = &updated

	c.logger.Infow("Operator state changed",
		"mode", op.Mode,
		"manual_approach", op.ManualApproach,
		"active", updated.Signal.Active)
}
