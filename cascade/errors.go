package cascade

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTopology is returned when a controller is built without a topology adapter.
	ErrNoTopology = errors.New("cascade: topology adapter is required")

	// ErrNoSolverFactory is returned when a controller is built without a solver factory.
	ErrNoSolverFactory = errors.New("cascade: solver factory is required")

	// ErrRunning is returned when a run or step is started while another is active.
	ErrRunning = errors.New("cascade: a run is already active on this controller")
)

// StepError wraps an adapter failure with the cascade step it happened on.
// Steps are 1-based, matching the "Step N" labels of the report table.
type StepError struct {
	Step    int
	Op      string
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("cascade step %d: %s: %v", e.Step, e.Op, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
