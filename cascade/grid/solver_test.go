package grid

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gridsim/blackout/cascade"
)

func triangleGrid() *Grid {
	return &Grid{
		Name:    "triangle",
		BaseMVA: 100,
		Buses:   []Bus{{Name: "A", Injection: 90}, {Name: "B", Injection: -60}, {Name: "C", Injection: -30}},
		Branches: []Branch{
			{From: "A", To: "B", Reactance: 0.1, Rate: 40},
			{From: "A", To: "C", Reactance: 0.1, Rate: 100},
			{From: "B", To: "C", Reactance: 0.1, Rate: 100},
		},
	}
}

func twoBusGrid(flow float64) *Grid {
	return &Grid{
		BaseMVA:  100,
		Buses:    []Bus{{Name: "A", Injection: flow}, {Name: "B", Injection: -flow}},
		Branches: []Branch{{From: "A", To: "B", Reactance: 0.1, Rate: 100}},
	}
}

func TestPowerFlow_TriangleFlows(t *testing.T) {
	// GIVEN a meshed triangle with equal reactances
	top, err := NewTopology(triangleGrid())
	require.NoError(t, err)
	s, err := Solvers{Topology: top, Options: DefaultOptions()}.PowerFlow()
	require.NoError(t, err)

	// WHEN solving
	require.NoError(t, s.Run())

	// THEN flows split by the DC network equations: A-B 50, A-C 40, B-C -10
	res := s.Results().(*FlowResults)
	flows := res.Flows()
	assert.InDelta(t, 50, flows[0], 1e-9)
	assert.InDelta(t, 40, flows[1], 1e-9)
	assert.InDelta(t, -10, flows[2], 1e-9)

	loading := res.Loading()
	assert.InDelta(t, 1.25, loading[0], 1e-9)
	assert.InDelta(t, 0.4, loading[1], 1e-9)
	assert.InDelta(t, 0.1, loading[2], 1e-9)

	// AND only the overloaded branch is a certain candidate
	cdf := res.OverloadCDF(1.0)
	assert.Equal(t, []int{0}, cdf.Indices)
	assert.Equal(t, []float64{1}, cdf.Probabilities)
	assert.Len(t, cdf.Loadings, 3)
}

func TestPowerFlow_DisabledBranchCarriesNothing(t *testing.T) {
	top, err := NewTopology(triangleGrid())
	require.NoError(t, err)
	s, err := Solvers{Topology: top, Options: DefaultOptions()}.PowerFlow()
	require.NoError(t, err)

	top.DisableBranch(0)
	require.NoError(t, s.Run())

	flows := s.Results().(*FlowResults).Flows()
	assert.Equal(t, 0.0, flows[0])
	// all of B's demand now arrives through C
	assert.InDelta(t, 90, flows[1], 1e-9)
	assert.InDelta(t, -60, flows[2], 1e-9)
}

func TestPowerFlow_IslandedBusSolves(t *testing.T) {
	top, err := NewTopology(lineGrid())
	require.NoError(t, err)
	top.DisableBranch(0)
	s, err := Solvers{Topology: top, Options: DefaultOptions()}.PowerFlow()
	require.NoError(t, err)

	require.NoError(t, s.Run())

	// the B-C island balances on its slack (B); C draws 30 MW
	flows := s.Results().(*FlowResults).Flows()
	assert.Equal(t, 0.0, flows[0])
	assert.InDelta(t, 30, flows[1], 1e-9)
}

func TestPowerFlow_LoadScale(t *testing.T) {
	top, err := NewTopology(twoBusGrid(60))
	require.NoError(t, err)
	s, err := Solvers{Topology: top, Options: Options{LoadScale: 2, StdevFraction: 0}}.PowerFlow()
	require.NoError(t, err)

	require.NoError(t, s.Run())
	assert.InDelta(t, 1.2, s.Results().Loading()[0], 1e-9)
}

func TestSolvers_Validation(t *testing.T) {
	_, err := Solvers{}.PowerFlow()
	assert.Error(t, err)

	top, err := NewTopology(lineGrid())
	require.NoError(t, err)
	_, err = Solvers{Topology: top, Options: DefaultOptions()}.LatinHypercube(0)
	assert.Error(t, err)
	_, err = Solvers{Topology: top, Options: Options{LoadScale: 0}}.PowerFlow()
	assert.Error(t, err)
}

func TestSampling_ZeroStdevMatchesPowerFlow(t *testing.T) {
	// GIVEN a branch loaded to 1.2 and no injection uncertainty
	top, err := NewTopology(twoBusGrid(120))
	require.NoError(t, err)
	s, err := Solvers{Topology: top, Options: Options{LoadScale: 1, StdevFraction: 0}}.LatinHypercube(8)
	require.NoError(t, err)

	// WHEN sampling
	require.NoError(t, s.Run())

	// THEN every sample overloads the branch
	res := s.Results().(*SampleResults)
	assert.Equal(t, 8, res.Samples())
	cdf := res.OverloadCDF(1.0)
	assert.Equal(t, []int{0}, cdf.Indices)
	assert.InDelta(t, 1.0, cdf.Probabilities[0], 1e-12)
	assert.InDelta(t, 1.2, cdf.Values[0], 1e-9)
	assert.InDelta(t, 1.2, cdf.Loadings[0], 1e-9)
}

func TestSampling_ProbabilitiesInRangeAndReproducible(t *testing.T) {
	run := func() cascade.OverloadSummary {
		top, err := NewTopology(twoBusGrid(100))
		require.NoError(t, err)
		s, err := Solvers{Topology: top, Options: Options{LoadScale: 1, StdevFraction: 0.2}, Seed: 11}.LatinHypercube(200)
		require.NoError(t, err)
		require.NoError(t, s.Run())
		return s.Results().OverloadCDF(1.0)
	}

	a, b := run(), run()
	assert.Equal(t, a, b)
	require.Len(t, a.Indices, 1)
	assert.Greater(t, a.Probabilities[0], 0.0)
	assert.Less(t, a.Probabilities[0], 1.0)
	assert.Greater(t, a.Values[0], 1.0)
}

func TestLatinHypercube_OneSamplePerStratum(t *testing.T) {
	// GIVEN one uncertain bus and 10 samples
	const n = 10
	rng := rand.New(rand.NewSource(5))
	scenarios := latinHypercube(rng, []float64{100, 0}, 0.1, n)

	// THEN the zero-injection bus is untouched
	// AND every probability stratum of the uncertain bus is hit exactly once
	dist := distuv.Normal{Mu: 100, Sigma: 10}
	strata := make([]int, 0, n)
	for _, sc := range scenarios {
		assert.Equal(t, 0.0, sc[1])
		strata = append(strata, int(dist.CDF(sc[0])*n))
	}
	sort.Ints(strata)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, strata)
}

func TestCascade_FiveBusEndToEnd(t *testing.T) {
	// GIVEN the five-bus case under 30% extra stress
	g, err := Load("testdata/five_bus.yaml")
	require.NoError(t, err)

	for _, kind := range []cascade.Kind{cascade.PowerFlow, cascade.LatinHypercube} {
		t.Run(kind.String(), func(t *testing.T) {
			top, err := NewTopology(g)
			require.NoError(t, err)
			cfg := cascade.DefaultConfig()
			cfg.Kind = kind
			cfg.Samples = 50
			solvers := Solvers{Topology: top, Options: Options{LoadScale: 1.3, StdevFraction: 0.1}, Seed: cfg.Seed}
			c, err := cascade.NewController(cfg, top, solvers)
			require.NoError(t, err)

			// WHEN running the full cascade
			require.NoError(t, c.Run(context.Background()))

			// THEN it ends within the bound min(1+1, 5-1) = 2 plus the final step
			log := c.Log()
			assert.GreaterOrEqual(t, log.Len(), 1)
			assert.LessOrEqual(t, log.Len(), 3)
			for _, idx := range c.FailedIndices() {
				assert.False(t, top.Enabled(idx), "branch %d should be out of service", idx)
			}
			assert.Len(t, c.Table(), log.Len())
		})
	}
}
