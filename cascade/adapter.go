package cascade

// BranchDisabler is the only write path into the per-branch enabled state.
// Removal heuristics call it; nothing else in the cascade engine mutates branches.
type BranchDisabler interface {
	DisableBranch(idx int)
}

// Topology compiles a grid into independently solvable islands and owns the
// per-branch enabled state.
type Topology interface {
	BranchDisabler
	// Compile builds the islands from scratch and returns how many there are.
	Compile() (int, error)
	// Compute rebuilds the islands after branch removals and returns the new count.
	Compute() (int, error)
	// BusCount returns the number of buses in the grid.
	BusCount() int
}

// OverloadSummary is the overload distribution reported by a solve.
// Indices, Values and Probabilities are parallel and only list overload
// candidates; Loadings covers every branch.
type OverloadSummary struct {
	Indices       []int     // branch indices seen above the threshold
	Values        []float64 // first loading value above the threshold per candidate
	Probabilities []float64 // probability of exceeding the threshold per candidate
	Loadings      []float64 // loading per branch
}

// Results is the immutable outcome of one solve.
type Results interface {
	// Loading returns the loading ratio per branch (flow / rating).
	Loading() []float64
	// OverloadCDF summarizes which branches exceed maxVal and how likely it is.
	OverloadCDF(maxVal float64) OverloadSummary
}

// Solver stresses the network. Run is blocking and is never interrupted by
// cancellation; each call refreshes Results against the current branch states.
type Solver interface {
	Run() error
	Results() Results
}

// SolverFactory builds the two solver variants a cascade can use.
type SolverFactory interface {
	PowerFlow() (Solver, error)
	LatinHypercube(samples int) (Solver, error)
}

// Observer receives step and run outcomes, e.g. for metrics.
// Implementations must not block.
type Observer interface {
	StepCompleted(kind Kind, ev Event)
	RunFinished(kind Kind, outcome Outcome)
}

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)
