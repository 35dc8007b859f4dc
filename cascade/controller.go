package cascade

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Controller orchestrates cascade runs against one grid.
//
// Only one Run or Step may be active at a time; callers must also avoid
// running two controllers against the same topology concurrently. Cancel,
// Log, FailedIndices and Table are safe to call from other goroutines.
type Controller struct {
	cfg       Config
	topo      Topology
	newSolver func() (Solver, error)
	reporter  Reporter
	observer  Observer

	mu      sync.Mutex
	log     *Log
	steps   int // interactive steps recorded in log since the last Run or Reset
	running bool
	cancel  context.CancelFunc // cancels the active Run; nil otherwise
}

// Option configures a Controller.
type Option func(*Controller)

// WithReporter routes progress and status notifications to r.
func WithReporter(r Reporter) Option {
	return func(c *Controller) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithObserver reports every step and run outcome to o.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// NewController validates cfg and selects the solver strategy for cfg.Kind.
// Kinds other than LatinHypercube use the power flow solver.
func NewController(cfg Config, topo Topology, solvers SolverFactory, opts ...Option) (*Controller, error) {
	if topo == nil {
		return nil, ErrNoTopology
	}
	if solvers == nil {
		return nil, ErrNoSolverFactory
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cascade config: %w", err)
	}
	// An empty list becomes nil, so the first Step falls back to the loading rule.
	cfg.TriggeringIdx = append([]int(nil), cfg.TriggeringIdx...)

	c := &Controller{
		cfg:      cfg,
		topo:     topo,
		reporter: nopReporter{},
		log:      NewLog(cfg.Kind),
	}
	switch cfg.Kind {
	case LatinHypercube:
		samples := cfg.Samples
		c.newSolver = func() (Solver, error) { return solvers.LatinHypercube(samples) }
	default:
		c.newSolver = solvers.PowerFlow
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns a copy of the configuration the controller was built with.
func (c *Controller) Config() Config {
	cfg := c.cfg
	cfg.TriggeringIdx = append([]int(nil), c.cfg.TriggeringIdx...)
	return cfg
}

// Run executes a full cascade with a fresh log.
//
// Each iteration solves the network, disables branches with the
// probability-based heuristic, recompiles the islands and reports progress.
// The loop stops once the island count or the iteration count passes
// IslandBound, or when ctx or Cancel cancels the run. Cancellation is observed
// only between iterations. Solver and topology failures are returned as-is
// (wrapped in *StepError inside the loop); the log keeps every completed step.
func (c *Controller) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := c.begin(cancel); err != nil {
		return err
	}
	return c.run(runCtx)
}

// RunAsync dispatches Run onto its own goroutine. The returned channel yields
// the run's error (nil on success or cancellation) and is then closed.
func (c *Controller) RunAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	if err := c.begin(cancel); err != nil {
		cancel()
		done <- err
		close(done)
		return done
	}
	go func() {
		defer close(done)
		defer cancel()
		done <- c.run(runCtx)
	}()
	return done
}

func (c *Controller) run(ctx context.Context) (err error) {
	outcome := OutcomeCompleted
	defer func() {
		if err != nil {
			outcome = OutcomeFailed
		}
		c.finish(outcome)
	}()

	logrus.Debug("Compiling...")
	islands, err := c.topo.Compile()
	if err != nil {
		return fmt.Errorf("compiling topology: %w", err)
	}

	c.mu.Lock()
	c.log = NewLog(c.cfg.Kind)
	c.steps = 0
	c.mu.Unlock()

	solver, err := c.newSolver()
	if err != nil {
		return fmt.Errorf("creating %s solver: %w", c.cfg.Kind, err)
	}
	rng := NewPartitionedRNG(NewRunKey(c.cfg.Seed)).ForSubsystem(SubsystemRemoval)

	c.reporter.Progress(0)
	c.reporter.Status(StatusRunning)

	buses := c.topo.BusCount()
	n := IslandBound(islands, c.cfg.MaxAdditionalIslands, buses)
	if islands+c.cfg.MaxAdditionalIslands > n {
		logrus.Warnf("island bound clamped to %d (buses=%d, initial islands=%d, tolerance=%d)",
			n, buses, islands, c.cfg.MaxAdditionalIslands)
	}
	logrus.Infof("Starting %s cascade: %d initial islands, bound %d", c.cfg.Kind, islands, n)

	it := 0
	for islands <= n && it <= n {
		if ctx.Err() != nil {
			break
		}
		step := it + 1

		if err := solver.Run(); err != nil {
			return &StepError{Step: step, Op: "solve", Wrapped: err}
		}
		results := solver.Results()
		removed, criteria := RemoveProbabilityBased(c.topo, results, OverloadThreshold, MinTriggerProbability, rng)

		islands, err = c.topo.Compute()
		if err != nil {
			return &StepError{Step: step, Op: "recompile topology", Wrapped: err}
		}
		c.record(Event{Removed: removed, Results: results, Criteria: criteria, Islands: islands})
		logrus.Debugf("[step %03d] removed %v (%s), islands=%d", step, removed, criteria, islands)

		it++
		c.reporter.Progress(progressFraction(islands, it, n) * 100.0)
	}
	if ctx.Err() != nil {
		outcome = OutcomeCancelled
	}

	logrus.Infof("Grid split into %d islands after %d steps", islands, it)
	return nil
}

// Step performs one interactive cascade step on a freshly compiled grid.
//
// The first step after construction, Run or Reset starts a fresh log and
// disables the configured triggering branches when there are any; every other
// step appends to that log using the default deterministic rule. Unlike Run,
// Step never uses the probability-based heuristic.
func (c *Controller) Step(ctx context.Context) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.begin(nil); err != nil {
		return err
	}
	outcome := OutcomeCompleted
	defer func() {
		if err != nil {
			outcome = OutcomeFailed
		}
		c.finish(outcome)
	}()

	if _, err := c.topo.Compile(); err != nil {
		return fmt.Errorf("compiling topology: %w", err)
	}
	solver, err := c.newSolver()
	if err != nil {
		return fmt.Errorf("creating %s solver: %w", c.cfg.Kind, err)
	}

	c.mu.Lock()
	if c.steps == 0 {
		c.log = NewLog(c.cfg.Kind)
	}
	step := c.steps + 1
	c.mu.Unlock()

	if err := solver.Run(); err != nil {
		return &StepError{Step: step, Op: "solve", Wrapped: err}
	}
	results := solver.Results()
	loading := results.Loading()

	var explicit []int
	if step == 1 {
		explicit = c.cfg.TriggeringIdx
	}
	removed := RemoveOverloaded(c.topo, loading, explicit)
	criteria := deterministicCriteria(loading, explicit, removed)

	islands, err := c.topo.Compute()
	if err != nil {
		return &StepError{Step: step, Op: "recompile topology", Wrapped: err}
	}
	c.mu.Lock()
	c.steps = step
	c.mu.Unlock()
	c.record(Event{Removed: removed, Results: results, Criteria: criteria, Islands: islands})
	logrus.Debugf("[step %03d] removed %v (%s), islands=%d", step, removed, criteria, islands)
	return nil
}

// Cancel asks the active run to stop at the next iteration boundary and
// immediately reports the cancellation. An in-flight solve is not interrupted.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.reporter.Progress(0)
	c.reporter.Status(StatusCancelled)
}

// Log returns a snapshot of the current log.
func (c *Controller) Log() *Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.clone()
}

// FailedIndices returns every removed branch index in event order.
func (c *Controller) FailedIndices() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.FailedIndices()
}

// Table returns one report row per event.
func (c *Controller) Table() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Table()
}

// Reset discards the current log so the next Step is treated as the first one.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrRunning
	}
	c.log = NewLog(c.cfg.Kind)
	c.steps = 0
	return nil
}

func (c *Controller) begin(cancel context.CancelFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrRunning
	}
	c.running = true
	c.cancel = cancel
	return nil
}

func (c *Controller) finish(outcome Outcome) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.RunFinished(c.cfg.Kind, outcome)
	}
	c.reporter.Progress(0)
	switch outcome {
	case OutcomeCompleted:
		c.reporter.Status(StatusDone)
	case OutcomeCancelled:
		c.reporter.Status(StatusCancelled)
	}
	c.reporter.Done()
}

func (c *Controller) record(ev Event) {
	c.mu.Lock()
	c.log.Append(ev)
	ev = c.log.Events[len(c.log.Events)-1]
	c.mu.Unlock()
	if c.observer != nil {
		c.observer.StepCompleted(c.cfg.Kind, ev)
	}
}

// progressFraction is max(islands, it) / (n+1), capped at 1.
func progressFraction(islands, it, n int) float64 {
	d := float64(n + 1)
	return math.Min(1, math.Max(float64(islands)/d, float64(it)/d))
}
