package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// dcIsland holds the factorized reduced susceptance matrix of one island.
// The first bus is the slack and absorbs the island's power imbalance.
type dcIsland struct {
	buses []int
	pos   map[int]int // non-slack bus -> row in the reduced matrix
	lu    *mat.LU     // nil for single-bus islands
}

// dcModel is the DC power flow of the grid under its current branch states.
type dcModel struct {
	topo    *Topology
	islands []dcIsland
}

// newDCModel recompiles the islands and factorizes one B' matrix per island.
func newDCModel(t *Topology) (*dcModel, error) {
	if _, err := t.Compile(); err != nil {
		return nil, fmt.Errorf("compiling islands: %w", err)
	}
	m := &dcModel{topo: t, islands: make([]dcIsland, len(t.islands))}
	for k, buses := range t.islands {
		isl := dcIsland{buses: buses, pos: make(map[int]int, len(buses))}
		for i, b := range buses[1:] {
			isl.pos[b] = i
		}
		if n := len(buses) - 1; n > 0 {
			bp := mat.NewDense(n, n, nil)
			for br, on := range t.enabled {
				if !on || t.busIsland[t.from[br]] != k {
					continue
				}
				b := 1.0 / t.grid.Branches[br].Reactance
				f, fok := isl.pos[t.from[br]]
				to, tok := isl.pos[t.to[br]]
				if fok {
					bp.Set(f, f, bp.At(f, f)+b)
				}
				if tok {
					bp.Set(to, to, bp.At(to, to)+b)
				}
				if fok && tok {
					bp.Set(f, to, bp.At(f, to)-b)
					bp.Set(to, f, bp.At(to, f)-b)
				}
			}
			var lu mat.LU
			lu.Factorize(bp)
			isl.lu = &lu
		}
		m.islands[k] = isl
	}
	return m, nil
}

// flows solves the DC power flow for the given bus injections (MW) and
// returns the active power flow per branch in MW. Disabled branches carry 0.
func (m *dcModel) flows(injections []float64) ([]float64, error) {
	base := m.topo.grid.BaseMVA
	theta := make([]float64, len(m.topo.grid.Buses))
	for k, isl := range m.islands {
		if isl.lu == nil {
			continue
		}
		p := mat.NewVecDense(len(isl.pos), nil)
		for b, row := range isl.pos {
			p.SetVec(row, injections[b]/base)
		}
		var x mat.VecDense
		if err := isl.lu.SolveVecTo(&x, false, p); err != nil {
			return nil, fmt.Errorf("solving island %d: %w", k, err)
		}
		for b, row := range isl.pos {
			theta[b] = x.AtVec(row)
		}
	}

	flows := make([]float64, len(m.topo.enabled))
	for br, on := range m.topo.enabled {
		if !on {
			continue
		}
		x := m.topo.grid.Branches[br].Reactance
		flows[br] = (theta[m.topo.from[br]] - theta[m.topo.to[br]]) / x * base
	}
	return flows, nil
}

// loadings converts branch flows (MW) into |flow| / rate.
func (m *dcModel) loadings(flows []float64) []float64 {
	out := make([]float64, len(flows))
	for br, f := range flows {
		out[br] = math.Abs(f) / m.topo.grid.Branches[br].Rate
	}
	return out
}

// baseInjections returns every bus injection scaled by factor.
func baseInjections(g *Grid, factor float64) []float64 {
	out := make([]float64, len(g.Buses))
	for i, b := range g.Buses {
		out[i] = b.Injection * factor
	}
	return out
}
