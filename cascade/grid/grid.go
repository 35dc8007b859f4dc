// Package grid provides reference adapters for the cascade engine: a YAML
// network model, island compilation, a DC power flow and a Latin hypercube
// sampling solver. The numerical and graph work is delegated to gonum.
package grid

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultBaseMVA is used when a case file leaves base_mva unset.
const DefaultBaseMVA = 100.0

// Bus is a network node. Injection is the net active power in MW:
// generation positive, demand negative.
type Bus struct {
	Name      string  `yaml:"name"`
	Injection float64 `yaml:"injection"`
}

// Branch is a line or transformer between two buses.
type Branch struct {
	Name      string  `yaml:"name,omitempty"`
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Reactance float64 `yaml:"x"`    // series reactance in p.u.
	Rate      float64 `yaml:"rate"` // thermal rating in MW
}

// Grid is a network case. Loaded from YAML via Load(path).
type Grid struct {
	Name     string   `yaml:"name"`
	BaseMVA  float64  `yaml:"base_mva,omitempty"`
	Buses    []Bus    `yaml:"buses"`
	Branches []Branch `yaml:"branches"`
}

// Load reads and validates a grid case file.
func Load(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grid case: %w", err)
	}
	return Parse(data)
}

// Parse decodes a grid case with strict field checking and validates it.
func Parse(data []byte) (*Grid, error) {
	var g Grid
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&g); err != nil {
		return nil, fmt.Errorf("parsing grid case: %w", err)
	}
	if g.BaseMVA == 0 {
		g.BaseMVA = DefaultBaseMVA
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks that all buses and branches are well formed.
func (g *Grid) Validate() error {
	if len(g.Buses) == 0 {
		return fmt.Errorf("grid %q: at least one bus required", g.Name)
	}
	if g.BaseMVA <= 0 || math.IsNaN(g.BaseMVA) || math.IsInf(g.BaseMVA, 0) {
		return fmt.Errorf("base_mva must be a positive finite number, got %f", g.BaseMVA)
	}
	seen := make(map[string]bool, len(g.Buses))
	for i, b := range g.Buses {
		if b.Name == "" {
			return fmt.Errorf("bus[%d]: name required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("bus[%d]: duplicate name %q", i, b.Name)
		}
		if math.IsNaN(b.Injection) || math.IsInf(b.Injection, 0) {
			return fmt.Errorf("bus[%d].injection must be a finite number, got %f", i, b.Injection)
		}
		seen[b.Name] = true
	}
	for i, br := range g.Branches {
		prefix := fmt.Sprintf("branch[%d]", i)
		if !seen[br.From] {
			return fmt.Errorf("%s: unknown from bus %q", prefix, br.From)
		}
		if !seen[br.To] {
			return fmt.Errorf("%s: unknown to bus %q", prefix, br.To)
		}
		if br.From == br.To {
			return fmt.Errorf("%s: from and to are both %q", prefix, br.From)
		}
		if br.Reactance == 0 || math.IsNaN(br.Reactance) || math.IsInf(br.Reactance, 0) {
			return fmt.Errorf("%s.x must be a finite non-zero number, got %f", prefix, br.Reactance)
		}
		if br.Rate <= 0 || math.IsNaN(br.Rate) || math.IsInf(br.Rate, 0) {
			return fmt.Errorf("%s.rate must be a positive finite number, got %f", prefix, br.Rate)
		}
	}
	return nil
}

// busIndex maps bus names to positions in Buses.
func (g *Grid) busIndex() map[string]int {
	idx := make(map[string]int, len(g.Buses))
	for i, b := range g.Buses {
		idx[b.Name] = i
	}
	return idx
}

// BranchName returns the branch's name, or "from-to" when unnamed.
func (g *Grid) BranchName(i int) string {
	if i < 0 || i >= len(g.Branches) {
		return fmt.Sprintf("branch_%d", i)
	}
	if n := g.Branches[i].Name; n != "" {
		return n
	}
	return g.Branches[i].From + "-" + g.Branches[i].To
}
