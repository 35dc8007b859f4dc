package cascade

import "fmt"

// Config holds the cascade parameters. A Controller copies it at construction,
// so it cannot change during a run.
type Config struct {
	Kind                 Kind  // solver variant used on every step
	TriggeringIdx        []int // branches forced offline on the first single step; empty means none configured
	MaxAdditionalIslands int   // islands the grid may split into before the cascade counts as a blackout
	Samples              int   // scenarios per step for LatinHypercube
	Seed                 int64 // master seed for sampling and random removal
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Kind:                 LatinHypercube,
		MaxAdditionalIslands: 1,
		Samples:              1000,
		Seed:                 42,
	}
}

// Validate checks that all fields are usable.
func (c Config) Validate() error {
	if c.MaxAdditionalIslands < 0 {
		return fmt.Errorf("max_additional_islands must be non-negative, got %d", c.MaxAdditionalIslands)
	}
	if c.Kind == LatinHypercube && c.Samples <= 0 {
		return fmt.Errorf("samples must be positive for %s, got %d", c.Kind, c.Samples)
	}
	for i, idx := range c.TriggeringIdx {
		if idx < 0 {
			return fmt.Errorf("triggering[%d] must be a non-negative branch index, got %d", i, idx)
		}
	}
	return nil
}

// IslandBound returns how far the cascade may go: min(initial+tolerance, buses-1),
// never negative. It bounds both the island count and the iteration count.
func IslandBound(initialIslands, tolerance, buses int) int {
	n := initialIslands + tolerance
	if limit := buses - 1; n > limit {
		n = limit
	}
	if n < 0 {
		n = 0
	}
	return n
}
