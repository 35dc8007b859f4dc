package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gridsim/blackout/cascade"
	"github.com/gridsim/blackout/cascade/grid"
	"github.com/gridsim/blackout/cascade/metrics"
	"github.com/gridsim/blackout/cascade/store"
)

var (
	// CLI flags shared by run and step
	configPath    string  // Scenario file (.yaml or .toml)
	gridPath      string  // Grid case file
	kindName      string  // Solver kind
	tolerance     int     // Additional islands tolerated before stopping
	samples       int     // Latin hypercube sample count
	seed          int64   // Seed for sampling and random removal
	triggering    []int   // Branches disabled on the first interactive step
	loadScale     float64 // Multiplier on every bus injection
	stdevFraction float64 // Sampling stdev as a fraction of |injection|
	logLevel      string  // Log verbosity level
	outputFormat  string  // Report format
	dbPath        string  // SQLite database for cascade history
	metricsFile   string  // Prometheus textfile written after the run

	// step-only flags
	stepCount int // Number of interactive steps

	// history-only flags
	historyRun string // Run ID whose steps are printed
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "blackout",
	Short: "Cascading failure simulator for power networks",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd executes a full cascade until the island tolerance is exceeded
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a cascading failure simulation",
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := resolveScenario(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runCascade(ctx, sc, os.Stdout); err != nil {
			logrus.Fatalf("Cascade failed: %v", err)
		}
	},
}

// stepCmd performs interactive cascade steps
var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Perform interactive cascade steps with the deterministic overload rule",
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := resolveScenario(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := runSteps(cmd.Context(), sc, stepCount, os.Stdout); err != nil {
			logrus.Fatalf("Cascade step failed: %v", err)
		}
	},
}

// historyCmd lists stored cascade runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List cascade runs stored in a database",
	Run: func(cmd *cobra.Command, args []string) {
		if dbPath == "" {
			logrus.Fatalf("--db is required")
		}
		if err := printHistory(cmd.Context(), dbPath, historyRun, os.Stdout); err != nil {
			logrus.Fatalf("Reading history: %v", err)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveScenario loads --config (when given) and applies explicitly set flags on top.
func resolveScenario(cmd *cobra.Command) (ScenarioConfig, error) {
	sc := DefaultScenario()
	if configPath != "" {
		loaded, err := LoadScenario(configPath)
		if err != nil {
			return sc, err
		}
		sc = loaded
	}
	applyFlagOverrides(cmd, &sc)
	if sc.Grid == "" {
		return sc, fmt.Errorf("no grid case given; use --grid or set grid in the scenario file")
	}
	return sc, nil
}

func applyFlagOverrides(cmd *cobra.Command, sc *ScenarioConfig) {
	flags := cmd.Flags()
	if flags.Changed("grid") {
		sc.Grid = gridPath
	}
	if flags.Changed("kind") {
		sc.Kind = kindName
	}
	if flags.Changed("tolerance") {
		sc.MaxAdditionalIslands = tolerance
	}
	if flags.Changed("samples") {
		sc.Samples = samples
	}
	if flags.Changed("seed") {
		sc.Seed = seed
	}
	if flags.Changed("trigger") {
		sc.Triggering = triggering
	}
	if flags.Changed("load-scale") {
		sc.Solver.LoadScale = loadScale
	}
	if flags.Changed("stdev-fraction") {
		sc.Solver.StdevFraction = stdevFraction
	}
}

// session bundles what one CLI invocation needs to drive a cascade.
type session struct {
	grid      *grid.Grid
	topo      *grid.Topology
	cfg       cascade.Config
	opts      grid.Options
	collector *metrics.Collector
}

func newSession(sc ScenarioConfig) (*session, error) {
	cfg, err := sc.CascadeConfig()
	if err != nil {
		return nil, err
	}
	opts, err := sc.SolverOptions()
	if err != nil {
		return nil, err
	}
	g, err := grid.Load(sc.Grid)
	if err != nil {
		return nil, err
	}
	for _, idx := range cfg.TriggeringIdx {
		if idx >= len(g.Branches) {
			return nil, fmt.Errorf("triggering branch %d out of range (grid has %d branches)", idx, len(g.Branches))
		}
	}
	topo, err := grid.NewTopology(g)
	if err != nil {
		return nil, err
	}
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return &session{grid: g, topo: topo, cfg: cfg, opts: opts, collector: collector}, nil
}

func (s *session) controller(reporter cascade.Reporter) (*cascade.Controller, error) {
	solvers := grid.Solvers{Topology: s.topo, Options: s.opts, Seed: s.cfg.Seed}
	return cascade.NewController(s.cfg, s.topo, solvers,
		cascade.WithReporter(reporter), cascade.WithObserver(s.collector))
}

// runCascade runs one full cascade, draining progress notifications on a
// second goroutine, and then prints, stores and exports the result.
func runCascade(ctx context.Context, sc ScenarioConfig, out io.Writer) error {
	s, err := newSession(sc)
	if err != nil {
		return err
	}
	notes := make(chan cascade.Notification, 64)
	ctrl, err := s.controller(cascade.ChanReporter(notes))
	if err != nil {
		return err
	}

	cfg := ctrl.Config()
	logrus.Infof("Grid %q: %d buses, %d branches; kind=%s tolerance=%d",
		s.grid.Name, len(s.grid.Buses), len(s.grid.Branches), cfg.Kind, cfg.MaxAdditionalIslands)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(notes)
		return ctrl.Run(gctx)
	})
	g.Go(func() error {
		drainNotifications(notes)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return s.finish(ctx, ctrl.Log(), out)
}

// runSteps performs n interactive steps and reports the accumulated log.
func runSteps(ctx context.Context, sc ScenarioConfig, n int, out io.Writer) error {
	if n < 1 {
		return fmt.Errorf("--steps must be >= 1, got %d", n)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := newSession(sc)
	if err != nil {
		return err
	}
	ctrl, err := s.controller(cascade.ReporterFuncs{
		OnStatus: func(text string) { logrus.Debugf("status: %s", text) },
	})
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := ctrl.Step(ctx); err != nil {
			return err
		}
	}
	return s.finish(ctx, ctrl.Log(), out)
}

func (s *session) finish(ctx context.Context, l *cascade.Log, out io.Writer) error {
	if err := WriteReport(out, outputFormat, NewReport(l, s.grid)); err != nil {
		return err
	}
	if dbPath != "" {
		if err := saveLog(ctx, dbPath, l); err != nil {
			return err
		}
		logrus.Infof("Saved run %s to %s", l.RunID, dbPath)
	}
	if metricsFile != "" {
		if err := s.collector.WriteTextfile(metricsFile); err != nil {
			return err
		}
		logrus.Infof("Metrics written to %s", metricsFile)
	}
	return nil
}

func drainNotifications(notes <-chan cascade.Notification) {
	for n := range notes {
		switch {
		case n.Done:
			logrus.Debug("cascade finished")
		case n.Text != "":
			logrus.Info(n.Text)
		default:
			logrus.Debugf("progress %.1f%%", n.Percent)
		}
	}
}

func saveLog(ctx context.Context, path string, l *cascade.Log) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Save(ctx, l)
}

func printHistory(ctx context.Context, path, runID string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if runID != "" {
		events, err := st.Events(ctx, runID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return fmt.Errorf("no steps stored for run %s", runID)
		}
		fmt.Fprintf(out, "%-12s %-16s %-8s %s\n", "Cascade step", "Elements failed", "Islands", "Criteria")
		for _, ev := range events {
			row := ev.Row()
			fmt.Fprintf(out, "%-12s %-16d %-8d %s\n", row.Step, row.Failed, ev.Islands, row.Criteria)
		}
		return nil
	}

	runs, err := st.Runs(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-36s  %-16s  %-20s  %5s  %7s  %7s\n", "RUN", "KIND", "CREATED", "STEPS", "REMOVED", "ISLANDS")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-16s  %-20s  %5d  %7d  %7d\n",
			r.ID, r.Kind, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.Steps, r.Removed, r.FinalIslands)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	defaults := DefaultScenario()
	for _, c := range []*cobra.Command{runCmd, stepCmd} {
		c.Flags().StringVar(&configPath, "config", "", "Scenario file (.yaml or .toml)")
		c.Flags().StringVar(&gridPath, "grid", "", "Grid case file (YAML)")
		c.Flags().StringVar(&kindName, "kind", defaults.Kind, "Solver kind (power-flow, latin-hypercube)")
		c.Flags().IntVar(&tolerance, "tolerance", defaults.MaxAdditionalIslands, "Additional islands tolerated before the cascade stops")
		c.Flags().IntVar(&samples, "samples", defaults.Samples, "Number of Latin hypercube samples")
		c.Flags().Int64Var(&seed, "seed", defaults.Seed, "Seed for sampling and random removal")
		c.Flags().IntSliceVar(&triggering, "trigger", nil, "Comma-separated branch indices disabled on the first step")
		c.Flags().Float64Var(&loadScale, "load-scale", defaults.Solver.LoadScale, "Multiplier applied to every bus injection")
		c.Flags().Float64Var(&stdevFraction, "stdev-fraction", defaults.Solver.StdevFraction, "Sampling stdev as a fraction of |injection|")
		c.Flags().StringVar(&outputFormat, "output", "text", "Report format (text, yaml)")
		c.Flags().StringVar(&dbPath, "db", "", "SQLite database to store the cascade log in")
		c.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	}
	stepCmd.Flags().IntVar(&stepCount, "steps", 1, "Number of interactive steps")

	historyCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database holding cascade runs")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Print the steps of this run instead of the run list")

	rootCmd.AddCommand(runCmd, stepCmd, historyCmd)
}
