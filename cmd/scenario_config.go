package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/gridsim/blackout/cascade"
	"github.com/gridsim/blackout/cascade/grid"
)

// SolverConfig tunes the reference solvers.
type SolverConfig struct {
	LoadScale     float64 `yaml:"load_scale" toml:"load_scale"`
	StdevFraction float64 `yaml:"stdev_fraction" toml:"stdev_fraction"`
}

// ScenarioConfig is a cascade scenario file (YAML, or TOML by extension).
// All top-level keys must be listed to satisfy strict parsing.
type ScenarioConfig struct {
	Grid                 string       `yaml:"grid" toml:"grid"` // relative paths resolve against the scenario file
	Kind                 string       `yaml:"kind" toml:"kind"`
	MaxAdditionalIslands int          `yaml:"max_additional_islands" toml:"max_additional_islands"`
	Samples              int          `yaml:"samples" toml:"samples"`
	Seed                 int64        `yaml:"seed" toml:"seed"`
	Triggering           []int        `yaml:"triggering,omitempty" toml:"triggering"`
	Solver               SolverConfig `yaml:"solver" toml:"solver"`
}

// DefaultScenario returns the scenario used when no file or flag says otherwise.
func DefaultScenario() ScenarioConfig {
	cfg := cascade.DefaultConfig()
	opts := grid.DefaultOptions()
	return ScenarioConfig{
		Kind:                 cfg.Kind.String(),
		MaxAdditionalIslands: cfg.MaxAdditionalIslands,
		Samples:              cfg.Samples,
		Seed:                 cfg.Seed,
		Solver:               SolverConfig{LoadScale: opts.LoadScale, StdevFraction: opts.StdevFraction},
	}
}

// LoadScenario reads a scenario file on top of DefaultScenario.
// Unknown keys are rejected in both formats.
func LoadScenario(path string) (ScenarioConfig, error) {
	sc := DefaultScenario()
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("reading scenario: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &sc)
		if err != nil {
			return sc, fmt.Errorf("parsing scenario: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return sc, fmt.Errorf("parsing scenario: unknown keys %v", undecoded)
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&sc); err != nil {
			return sc, fmt.Errorf("parsing scenario: %w", err)
		}
	}

	if sc.Grid != "" && !filepath.IsAbs(sc.Grid) {
		sc.Grid = filepath.Join(filepath.Dir(path), sc.Grid)
	}
	return sc, nil
}

// CascadeConfig converts the scenario into a validated cascade.Config.
func (sc ScenarioConfig) CascadeConfig() (cascade.Config, error) {
	kind, err := cascade.ParseKind(sc.Kind)
	if err != nil {
		return cascade.Config{}, err
	}
	cfg := cascade.Config{
		Kind:                 kind,
		TriggeringIdx:        sc.Triggering,
		MaxAdditionalIslands: sc.MaxAdditionalIslands,
		Samples:              sc.Samples,
		Seed:                 sc.Seed,
	}
	if err := cfg.Validate(); err != nil {
		return cascade.Config{}, err
	}
	return cfg, nil
}

// SolverOptions converts the solver section into grid.Options.
func (sc ScenarioConfig) SolverOptions() (grid.Options, error) {
	opts := grid.Options{LoadScale: sc.Solver.LoadScale, StdevFraction: sc.Solver.StdevFraction}
	if err := opts.Validate(); err != nil {
		return grid.Options{}, fmt.Errorf("solver: %w", err)
	}
	return opts, nil
}
