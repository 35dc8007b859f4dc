package cascade

import (
	"strconv"

	"github.com/google/uuid"
)

// Event records one cascade step.
type Event struct {
	Removed  []int   // branch indices disabled on this step, in removal order
	Results  Results // solver results the decision was based on
	Criteria string  // rule that selected Removed
	Islands  int     // island count after the step was applied
}

// Log is the append-only record of one cascade run.
type Log struct {
	RunID  string
	Kind   Kind
	Events []Event
}

// NewLog creates an empty log for a run of the given kind.
func NewLog(kind Kind) *Log {
	return &Log{
		RunID:  uuid.NewString(),
		Kind:   kind,
		Events: make([]Event, 0),
	}
}

// Append adds an event. The removed indices are copied so callers cannot
// mutate a recorded step.
func (l *Log) Append(ev Event) {
	ev.Removed = append(make([]int, 0, len(ev.Removed)), ev.Removed...)
	l.Events = append(l.Events, ev)
}

// Len returns the number of recorded steps. Safe on a nil log.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Events)
}

// FailedIndices concatenates every event's removed indices in event order.
// Never returns nil.
func (l *Log) FailedIndices() []int {
	out := make([]int, 0)
	if l == nil {
		return out
	}
	for _, ev := range l.Events {
		out = append(out, ev.Removed...)
	}
	return out
}

// Row is one line of the cascade report table.
type Row struct {
	Step     string `json:"step" yaml:"step"`
	Failed   int    `json:"elements_failed" yaml:"elements_failed"`
	Criteria string `json:"criteria" yaml:"criteria"`
}

// Table returns one row per event, in event order. Never returns nil.
func (l *Log) Table() []Row {
	rows := make([]Row, 0, l.Len())
	if l == nil {
		return rows
	}
	for i, ev := range l.Events {
		rows = append(rows, Row{
			Step:     StepLabel(i + 1),
			Failed:   len(ev.Removed),
			Criteria: ev.Criteria,
		})
	}
	return rows
}

// StepLabel returns the report label for the 1-based step n.
func StepLabel(n int) string {
	return "Step " + strconv.Itoa(n)
}

// clone returns a copy that shares no removed-index storage with l.
func (l *Log) clone() *Log {
	if l == nil {
		return nil
	}
	c := *l
	c.Events = make([]Event, len(l.Events))
	for i, ev := range l.Events {
		ev.Removed = append(make([]int, 0, len(ev.Removed)), ev.Removed...)
		c.Events[i] = ev
	}
	return &c
}
