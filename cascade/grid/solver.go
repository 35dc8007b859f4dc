package grid

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gridsim/blackout/cascade"
)

// Options tunes the reference solvers.
type Options struct {
	LoadScale     float64 // multiplier on every bus injection (stress level, default 1)
	StdevFraction float64 // injection standard deviation as a fraction of |injection| when sampling
}

// DefaultOptions returns the solver options used when nothing is specified.
func DefaultOptions() Options {
	return Options{LoadScale: 1.0, StdevFraction: 0.1}
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if o.LoadScale <= 0 || math.IsNaN(o.LoadScale) || math.IsInf(o.LoadScale, 0) {
		return fmt.Errorf("load_scale must be a positive finite number, got %f", o.LoadScale)
	}
	if o.StdevFraction < 0 || math.IsNaN(o.StdevFraction) || math.IsInf(o.StdevFraction, 0) {
		return fmt.Errorf("stdev_fraction must be a non-negative finite number, got %f", o.StdevFraction)
	}
	return nil
}

// PowerFlowSolver runs one DC power flow per Run against the current branch states.
type PowerFlowSolver struct {
	topo    *Topology
	opts    Options
	results *FlowResults
}

// Run solves the network. Results are replaced only on success.
func (s *PowerFlowSolver) Run() error {
	model, err := newDCModel(s.topo)
	if err != nil {
		return err
	}
	flows, err := model.flows(baseInjections(s.topo.grid, s.opts.LoadScale))
	if err != nil {
		return fmt.Errorf("dc power flow: %w", err)
	}
	s.results = &FlowResults{flows: flows, loading: model.loadings(flows)}
	return nil
}

// Results returns the last solve. Before the first Run every loading is empty.
func (s *PowerFlowSolver) Results() cascade.Results {
	if s.results == nil {
		return &FlowResults{}
	}
	return s.results
}

// SamplingSolver runs a Latin hypercube study: each Run draws Samples
// scenarios of bus injections and solves a DC power flow for every one.
type SamplingSolver struct {
	topo    *Topology
	opts    Options
	samples int
	rng     *rand.Rand
	results *SampleResults
}

// Run samples and solves the network.
func (s *SamplingSolver) Run() error {
	model, err := newDCModel(s.topo)
	if err != nil {
		return err
	}
	if s.topo.BranchCount() == 0 {
		s.results = nil
		return nil
	}
	base := baseInjections(s.topo.grid, s.opts.LoadScale)
	scenarios := latinHypercube(s.rng, base, s.opts.StdevFraction, s.samples)

	loadings := mat.NewDense(s.samples, s.topo.BranchCount(), nil)
	for i, inj := range scenarios {
		flows, err := model.flows(inj)
		if err != nil {
			return fmt.Errorf("sample %d: dc power flow: %w", i, err)
		}
		loadings.SetRow(i, model.loadings(flows))
	}
	s.results = newSampleResults(loadings)
	logrus.Debugf("latin hypercube: %d samples over %d branches", s.samples, s.topo.BranchCount())
	return nil
}

// Results returns the last sampled study.
func (s *SamplingSolver) Results() cascade.Results {
	if s.results == nil {
		return &FlowResults{}
	}
	return s.results
}

// latinHypercube draws n injection scenarios. Every bus with a non-zero
// injection is one dimension: its n strata are visited once each in random
// order and mapped through the normal quantile around the base value.
func latinHypercube(rng *rand.Rand, base []float64, stdevFraction float64, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), base...)
	}
	if stdevFraction == 0 {
		return out
	}
	for bus, p := range base {
		if p == 0 {
			continue
		}
		dist := distuv.Normal{Mu: p, Sigma: stdevFraction * math.Abs(p)}
		perm := rng.Perm(n)
		for i := 0; i < n; i++ {
			u := (float64(perm[i]) + rng.Float64()) / float64(n)
			if u <= 0 {
				u = 0.5 / float64(n)
			}
			out[i][bus] = dist.Quantile(u)
		}
	}
	return out
}

// Solvers builds reference solvers over a Topology. It implements cascade.SolverFactory.
type Solvers struct {
	Topology *Topology
	Options  Options
	Seed     int64 // seeds the sampling subsystem; every constructed solver restarts from it
}

// PowerFlow returns a deterministic DC power flow solver.
func (f Solvers) PowerFlow() (cascade.Solver, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return &PowerFlowSolver{topo: f.Topology, opts: f.Options}, nil
}

// LatinHypercube returns a sampling solver drawing samples scenarios per Run.
func (f Solvers) LatinHypercube(samples int) (cascade.Solver, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	if samples <= 0 {
		return nil, fmt.Errorf("latin hypercube: samples must be positive, got %d", samples)
	}
	rng := cascade.NewPartitionedRNG(cascade.NewRunKey(f.Seed)).ForSubsystem(cascade.SubsystemSampling)
	return &SamplingSolver{topo: f.Topology, opts: f.Options, samples: samples, rng: rng}, nil
}

func (f Solvers) check() error {
	if f.Topology == nil {
		return fmt.Errorf("solver factory: topology is required")
	}
	return f.Options.Validate()
}
