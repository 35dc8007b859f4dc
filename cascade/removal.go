package cascade

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/sirupsen/logrus"
)

const (
	// OverloadThreshold is the loading ratio above which a branch is overloaded.
	OverloadThreshold = 1.0
	// MinTriggerProbability is the overload probability at which Run disables a branch.
	MinTriggerProbability = 0.1
)

// Criteria strings attached to cascade events.
const (
	CriteriaTriggering     = "Triggering branches"
	CriteriaOverloaded     = "Loading > 1.0"
	CriteriaRandomOverload = "Random with overloads"
	CriteriaMaxLoading     = "Max loading, Overloads not seen"
	CriteriaNoBranches     = "No branches"
)

// ProbabilityCriteria returns the criteria text for threshold removal at minProb.
func ProbabilityCriteria(minProb float64) string {
	return "Overload probability > " + strconv.FormatFloat(minProb, 'g', -1, 64)
}

// RemoveOverloaded is the deterministic-threshold heuristic.
//
// When explicit is non-nil exactly those branches are disabled, unfiltered and
// in the given order; an empty non-nil slice disables nothing. Otherwise every branch with |loading| > 1.0 is disabled;
// if none qualifies, every branch tied for the maximum |loading| is disabled so
// the cascade always progresses. Returns the disabled indices.
func RemoveOverloaded(t BranchDisabler, loading []float64, explicit []int) []int {
	var idx []int
	if explicit != nil {
		idx = append(make([]int, 0, len(explicit)), explicit...)
	} else {
		idx = overloadedOrMax(loading)
	}
	for _, i := range idx {
		t.DisableBranch(i)
	}
	return idx
}

// overloadedOrMax selects |loading| > 1.0, falling back to all maxima.
func overloadedOrMax(loading []float64) []int {
	idx := make([]int, 0)
	if len(loading) == 0 {
		logrus.Warn("deterministic removal: solver returned no loading data")
		return idx
	}
	maxLoad := math.Inf(-1)
	for i, l := range loading {
		a := math.Abs(l)
		if a > OverloadThreshold {
			idx = append(idx, i)
		}
		if a > maxLoad {
			maxLoad = a
		}
	}
	if len(idx) > 0 {
		return idx
	}
	for i, l := range loading {
		if math.Abs(l) >= maxLoad {
			idx = append(idx, i)
		}
	}
	return idx
}

// deterministicCriteria names the rule RemoveOverloaded applied.
func deterministicCriteria(loading []float64, explicit []int, removed []int) string {
	switch {
	case len(removed) == 0:
		return CriteriaNoBranches
	case explicit != nil:
		return CriteriaTriggering
	case math.Abs(loading[removed[0]]) > OverloadThreshold:
		return CriteriaOverloaded
	default:
		return CriteriaMaxLoading
	}
}

// RemoveProbabilityBased is the probability-based heuristic.
//
// Every overload candidate whose probability of exceeding maxVal is at least
// minProb is disabled. If none qualifies the outcome falls back, in order, to one
// candidate picked uniformly at random, to the first branch with the maximum
// loading, and finally to removing nothing. Exactly one criteria string is
// returned per outcome.
func RemoveProbabilityBased(t BranchDisabler, results Results, maxVal, minProb float64, rng *rand.Rand) ([]int, string) {
	s := results.OverloadCDF(maxVal)

	indices := make([]int, 0)
	for i, idx := range s.Indices {
		if i < len(s.Probabilities) && s.Probabilities[i] >= minProb {
			t.DisableBranch(idx)
			indices = append(indices, idx)
		}
	}
	if len(indices) > 0 {
		return indices, ProbabilityCriteria(minProb)
	}

	switch {
	case len(s.Indices) > 0:
		var pos int
		if rng != nil {
			pos = rng.Intn(len(s.Indices))
		} else {
			pos = rand.Intn(len(s.Indices))
		}
		idx := s.Indices[pos]
		t.DisableBranch(idx)
		return []int{idx}, CriteriaRandomOverload
	case len(s.Loadings) > 0:
		// Loadings is indexed as the solver reports it; adapters must keep it
		// aligned with global branch indices.
		idx := argmaxFirst(s.Loadings)
		t.DisableBranch(idx)
		return []int{idx}, CriteriaMaxLoading
	default:
		return indices, CriteriaNoBranches
	}
}

// argmaxFirst returns the first index holding the maximum value.
func argmaxFirst(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
