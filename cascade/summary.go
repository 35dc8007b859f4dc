package cascade

// Summary aggregates statistics from a cascade Log.
type Summary struct {
	Steps                int
	RemovedBranches      int
	FinalIslands         int
	CriteriaDistribution map[string]int // criteria -> number of steps
}

// Summarize computes aggregate statistics from a Log.
// Safe for nil or empty logs (returns zero-value fields).
func Summarize(l *Log) *Summary {
	summary := &Summary{
		CriteriaDistribution: make(map[string]int),
	}
	if l == nil {
		return summary
	}

	summary.Steps = len(l.Events)
	for _, ev := range l.Events {
		summary.RemovedBranches += len(ev.Removed)
		summary.CriteriaDistribution[ev.Criteria]++
	}
	if n := len(l.Events); n > 0 {
		summary.FinalIslands = l.Events[n-1].Islands
	}
	return summary
}
