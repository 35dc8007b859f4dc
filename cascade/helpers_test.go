package cascade

import (
	"errors"
	"sync"
)

// fakeTopology counts islands as 1 + the number of distinct disabled branches,
// capped by an optional script of island counts per Compute call.
type fakeTopology struct {
	buses    int
	initial  int
	disabled []int
	computes []int // island count returned by successive Compute calls; falls back to initial+len(disabled)
	calls    int
	failOn   int // Compute call (1-based) that fails; 0 = never
}

func (f *fakeTopology) DisableBranch(idx int) { f.disabled = append(f.disabled, idx) }
func (f *fakeTopology) BusCount() int         { return f.buses }
func (f *fakeTopology) Compile() (int, error) { return f.initial, nil }

func (f *fakeTopology) Compute() (int, error) {
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return 0, errors.New("singular island")
	}
	if f.calls <= len(f.computes) {
		return f.computes[f.calls-1], nil
	}
	return f.initial + len(f.disabled), nil
}

// fakeResults is a canned solver outcome.
type fakeResults struct {
	loading []float64
	summary OverloadSummary
}

func (r *fakeResults) Loading() []float64                   { return r.loading }
func (r *fakeResults) OverloadCDF(float64) OverloadSummary { return r.summary }

// fakeSolver returns scripted results, one per Run call (the last one repeats).
type fakeSolver struct {
	mu      sync.Mutex
	script  []*fakeResults
	runs    int
	err     error
	onRun   func(n int) // invoked with the 1-based run number before returning
	current *fakeResults
}

func (s *fakeSolver) Run() error {
	s.mu.Lock()
	s.runs++
	n := s.runs
	if s.err != nil {
		s.mu.Unlock()
		return s.err
	}
	i := n - 1
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.current = s.script[i]
	hook := s.onRun
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (s *fakeSolver) Results() Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// fakeFactory hands out the same solver for both kinds and records which was asked for.
type fakeFactory struct {
	solver   *fakeSolver
	requests []string
	samples  int
}

func (f *fakeFactory) PowerFlow() (Solver, error) {
	f.requests = append(f.requests, "power-flow")
	return f.solver, nil
}

func (f *fakeFactory) LatinHypercube(samples int) (Solver, error) {
	f.requests = append(f.requests, "latin-hypercube")
	f.samples = samples
	return f.solver, nil
}

// recordingReporter keeps every notification for assertions.
type recordingReporter struct {
	mu       sync.Mutex
	progress []float64
	statuses []string
	dones    int
}

func (r *recordingReporter) Progress(p float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingReporter) Status(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recordingReporter) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dones++
}

func (r *recordingReporter) lastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

// recordingObserver keeps observer callbacks.
type recordingObserver struct {
	steps    []Event
	outcomes []Outcome
}

func (o *recordingObserver) StepCompleted(_ Kind, ev Event)       { o.steps = append(o.steps, ev) }
func (o *recordingObserver) RunFinished(_ Kind, outcome Outcome) { o.outcomes = append(o.outcomes, outcome) }

// overloadedResults has one candidate per index with probability 1.
func overloadedResults(idx ...int) *fakeResults {
	r := &fakeResults{summary: OverloadSummary{Loadings: []float64{0.5, 0.5, 0.5, 0.5, 0.5}}}
	for _, i := range idx {
		r.summary.Indices = append(r.summary.Indices, i)
		r.summary.Values = append(r.summary.Values, 1.2)
		r.summary.Probabilities = append(r.summary.Probabilities, 1.0)
	}
	return r
}
