package grid

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gridsim/blackout/cascade"
)

// FlowResults is the outcome of one deterministic DC power flow.
type FlowResults struct {
	flows   []float64
	loading []float64
}

// Flows returns the active power flow per branch in MW.
func (r *FlowResults) Flows() []float64 {
	return append([]float64(nil), r.flows...)
}

// Loading returns |flow| / rate per branch.
func (r *FlowResults) Loading() []float64 {
	return append([]float64(nil), r.loading...)
}

// OverloadCDF treats the single solve as a certain outcome: every branch above
// maxVal is a candidate with probability 1.
func (r *FlowResults) OverloadCDF(maxVal float64) cascade.OverloadSummary {
	s := cascade.OverloadSummary{Loadings: r.Loading()}
	for br, l := range r.loading {
		if l > maxVal {
			s.Indices = append(s.Indices, br)
			s.Values = append(s.Values, l)
			s.Probabilities = append(s.Probabilities, 1)
		}
	}
	return s
}

// SampleResults holds the branch loadings of every sampled scenario.
type SampleResults struct {
	loadings *mat.Dense // samples x branches
	mean     []float64
}

func newSampleResults(loadings *mat.Dense) *SampleResults {
	_, branches := loadings.Dims()
	r := &SampleResults{loadings: loadings, mean: make([]float64, branches)}
	for br := 0; br < branches; br++ {
		r.mean[br] = stat.Mean(mat.Col(nil, br, loadings), nil)
	}
	return r
}

// Samples returns the number of sampled scenarios.
func (r *SampleResults) Samples() int {
	n, _ := r.loadings.Dims()
	return n
}

// Loading returns the mean loading per branch across samples.
func (r *SampleResults) Loading() []float64 {
	return append([]float64(nil), r.mean...)
}

// OverloadCDF lists every branch seen above maxVal in at least one sample.
// Values holds the smallest sampled loading above maxVal, Probabilities the
// share of samples above maxVal, and Loadings the mean loading of every branch.
func (r *SampleResults) OverloadCDF(maxVal float64) cascade.OverloadSummary {
	s := cascade.OverloadSummary{Loadings: r.Loading()}
	n, branches := r.loadings.Dims()
	for br := 0; br < branches; br++ {
		col := mat.Col(nil, br, r.loadings)
		above := 0
		first := math.Inf(1)
		for _, l := range col {
			if l > maxVal {
				above++
				first = math.Min(first, l)
			}
		}
		if above == 0 {
			continue
		}
		s.Indices = append(s.Indices, br)
		s.Values = append(s.Values, first)
		s.Probabilities = append(s.Probabilities, float64(above)/float64(n))
	}
	return s
}
