package cascade

import (
	"fmt"
	"strings"
)

// Kind selects the solver used to stress the network on each cascade step.
type Kind int

const (
	// PowerFlow runs a single deterministic power flow per step.
	PowerFlow Kind = iota
	// LatinHypercube samples the injections and derives overload probabilities.
	LatinHypercube
)

// String returns the canonical CLI/config name of the kind.
func (k Kind) String() string {
	switch k {
	case LatinHypercube:
		return "latin-hypercube"
	default:
		return "power-flow"
	}
}

// validKinds maps accepted kind names, including the aliases used in config files.
var validKinds = map[string]Kind{
	"power-flow":      PowerFlow,
	"powerflow":       PowerFlow,
	"pf":              PowerFlow,
	"latin-hypercube": LatinHypercube,
	"latinhypercube":  LatinHypercube,
	"lhs":             LatinHypercube,
}

// ParseKind converts a kind name into a Kind. Empty defaults to LatinHypercube,
// which is the default cascade kind.
func ParseKind(name string) (Kind, error) {
	if name == "" {
		return LatinHypercube, nil
	}
	k, ok := validKinds[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return PowerFlow, fmt.Errorf("unknown cascade kind %q; valid: power-flow, latin-hypercube", name)
	}
	return k, nil
}
