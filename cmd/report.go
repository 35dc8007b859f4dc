package cmd

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gridsim/blackout/cascade"
	"github.com/gridsim/blackout/cascade/grid"
)

// Report is the machine-readable cascade outcome printed with --output yaml.
type Report struct {
	RunID          string         `yaml:"run_id"`
	Kind           string         `yaml:"kind"`
	Steps          []cascade.Row  `yaml:"steps"`
	FailedBranches []string       `yaml:"failed_branches"`
	FinalIslands   int            `yaml:"final_islands"`
	Criteria       map[string]int `yaml:"criteria"`
}

// NewReport builds a Report from a log, naming branches from g when given.
func NewReport(l *cascade.Log, g *grid.Grid) Report {
	summary := cascade.Summarize(l)
	failed := l.FailedIndices()
	names := make([]string, 0, len(failed))
	for _, idx := range failed {
		if g != nil {
			names = append(names, g.BranchName(idx))
		} else {
			names = append(names, fmt.Sprintf("branch_%d", idx))
		}
	}
	return Report{
		RunID:          l.RunID,
		Kind:           l.Kind.String(),
		Steps:          l.Table(),
		FailedBranches: names,
		FinalIslands:   summary.FinalIslands,
		Criteria:       summary.CriteriaDistribution,
	}
}

// WriteReport prints the report as "text" or "yaml".
func WriteReport(w io.Writer, format string, r Report) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return enc.Close()
	case "text", "":
		fmt.Fprintf(w, "=== Cascade %s (%s) ===\n", r.RunID, r.Kind)
		fmt.Fprintf(w, "%-12s %-16s %s\n", "Cascade step", "Elements failed", "Criteria")
		for _, row := range r.Steps {
			fmt.Fprintf(w, "%-12s %-16d %s\n", row.Step, row.Failed, row.Criteria)
		}
		fmt.Fprintf(w, "Failed branches: %v\n", r.FailedBranches)
		fmt.Fprintf(w, "Final islands: %d\n", r.FinalIslands)
		return nil
	default:
		return fmt.Errorf("unknown output format %q; valid: text, yaml", format)
	}
}
