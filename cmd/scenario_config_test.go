package cmd

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsim/blackout/cascade"
)

func TestLoadScenario_YAML(t *testing.T) {
	// GIVEN a YAML scenario with every field set
	path := filepath.Join("testdata", "scenario.yaml")

	// WHEN it is loaded
	sc, err := LoadScenario(path)
	require.NoError(t, err)

	// THEN every field is decoded and the grid path is resolved against the file
	assert.Equal(t, filepath.Join("testdata", "five_bus.yaml"), sc.Grid)
	assert.Equal(t, "power-flow", sc.Kind)
	assert.Equal(t, 2, sc.MaxAdditionalIslands)
	assert.Equal(t, 200, sc.Samples)
	assert.Equal(t, int64(7), sc.Seed)
	assert.Equal(t, []int{1, 3}, sc.Triggering)
	assert.Equal(t, 1.5, sc.Solver.LoadScale)
	assert.Equal(t, 0.05, sc.Solver.StdevFraction)
}

func TestLoadScenario_TOML(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenario.toml"))
	require.NoError(t, err)

	assert.Equal(t, "latin-hypercube", sc.Kind)
	assert.Equal(t, 0, sc.MaxAdditionalIslands)
	assert.Equal(t, 50, sc.Samples)
	assert.Equal(t, int64(11), sc.Seed)
	assert.Empty(t, sc.Triggering)
	assert.Equal(t, 1.2, sc.Solver.LoadScale)
	assert.Equal(t, 0.2, sc.Solver.StdevFraction)
}

func TestLoadScenario_UnknownKeysRejected(t *testing.T) {
	for _, name := range []string{"unknown_key.yaml", "unknown_key.toml"} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScenario(filepath.Join("testdata", name))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "does_not_exist.yaml"))
	assert.Error(t, err)
}

func TestDefaultScenario_MatchesCascadeDefaults(t *testing.T) {
	cfg, err := DefaultScenario().CascadeConfig()
	require.NoError(t, err)
	def := cascade.DefaultConfig()
	assert.Equal(t, def.Kind, cfg.Kind)
	assert.Equal(t, def.MaxAdditionalIslands, cfg.MaxAdditionalIslands)
	assert.Equal(t, def.Samples, cfg.Samples)
	assert.Equal(t, def.Seed, cfg.Seed)
}

func TestScenarioConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScenarioConfig)
	}{
		{"unknown kind", func(sc *ScenarioConfig) { sc.Kind = "monte-carlo" }},
		{"negative tolerance", func(sc *ScenarioConfig) { sc.MaxAdditionalIslands = -1 }},
		{"zero samples for sampling", func(sc *ScenarioConfig) { sc.Kind = "latin-hypercube"; sc.Samples = 0 }},
		{"negative triggering index", func(sc *ScenarioConfig) { sc.Triggering = []int{-2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := DefaultScenario()
			tt.mutate(&sc)
			_, err := sc.CascadeConfig()
			assert.Error(t, err)
		})
	}

	t.Run("non-positive load scale", func(t *testing.T) {
		sc := DefaultScenario()
		sc.Solver.LoadScale = 0
		_, err := sc.SolverOptions()
		assert.Error(t, err)
	})
}

func TestApplyFlagOverrides_OnlyChangedFlags(t *testing.T) {
	// GIVEN a scenario loaded from file and a command where only --tolerance and --trigger are set
	sc, err := LoadScenario(filepath.Join("testdata", "scenario.yaml"))
	require.NoError(t, err)

	c := &cobra.Command{Use: "test"}
	c.Flags().StringVar(&kindName, "kind", "latin-hypercube", "")
	c.Flags().IntVar(&tolerance, "tolerance", 1, "")
	c.Flags().IntSliceVar(&triggering, "trigger", nil, "")
	c.Flags().Int64Var(&seed, "seed", 42, "")
	require.NoError(t, c.ParseFlags([]string{"--tolerance", "5", "--trigger", "0,4"}))

	// WHEN overrides are applied
	applyFlagOverrides(c, &sc)

	// THEN the changed flags win and the file values survive for the rest
	assert.Equal(t, 5, sc.MaxAdditionalIslands)
	assert.Equal(t, []int{0, 4}, sc.Triggering)
	assert.Equal(t, "power-flow", sc.Kind, "unchanged --kind must not override the file")
	assert.Equal(t, int64(7), sc.Seed, "unchanged --seed must not override the file")
}
