package grid

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Topology compiles a Grid into islands and owns the per-branch enabled state.
// It implements cascade.Topology. Branch states persist across Compile calls;
// use Restore to bring every branch back.
//
// Thread-safety: NOT thread-safe. The cascade controller serializes access.
type Topology struct {
	grid      *Grid
	from, to  []int
	enabled   []bool
	islands   [][]int // bus indices per island, ascending
	busIsland []int   // bus index -> island index
}

// NewTopology builds a Topology with every branch enabled.
func NewTopology(g *Grid) (*Topology, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	idx := g.busIndex()
	t := &Topology{
		grid:    g,
		from:    make([]int, len(g.Branches)),
		to:      make([]int, len(g.Branches)),
		enabled: make([]bool, len(g.Branches)),
	}
	for i, br := range g.Branches {
		t.from[i] = idx[br.From]
		t.to[i] = idx[br.To]
		t.enabled[i] = true
	}
	return t, nil
}

// Grid returns the underlying network case.
func (t *Topology) Grid() *Grid { return t.grid }

// BusCount returns the number of buses.
func (t *Topology) BusCount() int { return len(t.grid.Buses) }

// BranchCount returns the number of branches.
func (t *Topology) BranchCount() int { return len(t.grid.Branches) }

// DisableBranch takes branch i out of service. Out-of-range indices are ignored.
func (t *Topology) DisableBranch(i int) {
	if i < 0 || i >= len(t.enabled) {
		logrus.Warnf("DisableBranch: index %d out of range [0, %d)", i, len(t.enabled))
		return
	}
	t.enabled[i] = false
}

// Enabled reports whether branch i is in service.
func (t *Topology) Enabled(i int) bool {
	return i >= 0 && i < len(t.enabled) && t.enabled[i]
}

// Restore puts every branch back in service.
func (t *Topology) Restore() {
	for i := range t.enabled {
		t.enabled[i] = true
	}
}

// Compile partitions the grid into islands from scratch.
func (t *Topology) Compile() (int, error) {
	g := simple.NewUndirectedGraph()
	for i := range t.grid.Buses {
		g.AddNode(simple.Node(i))
	}
	for i, on := range t.enabled {
		if !on {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(t.from[i]), simple.Node(t.to[i])))
	}

	components := topo.ConnectedComponents(g)
	islands := make([][]int, 0, len(components))
	for _, c := range components {
		island := make([]int, 0, len(c))
		for _, n := range c {
			island = append(island, int(n.ID()))
		}
		sort.Ints(island)
		islands = append(islands, island)
	}
	sort.Slice(islands, func(i, j int) bool { return islands[i][0] < islands[j][0] })

	t.islands = islands
	t.busIsland = make([]int, len(t.grid.Buses))
	for k, island := range islands {
		for _, b := range island {
			t.busIsland[b] = k
		}
	}
	return len(islands), nil
}

// Compute recompiles the islands after branch removals.
func (t *Topology) Compute() (int, error) {
	return t.Compile()
}

// Islands returns the bus indices of every island from the last compile.
func (t *Topology) Islands() [][]int {
	out := make([][]int, len(t.islands))
	for i, island := range t.islands {
		out[i] = append([]int(nil), island...)
	}
	return out
}
