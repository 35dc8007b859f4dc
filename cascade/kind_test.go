package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		want    Kind
		wantErr bool
	}{
		{"", LatinHypercube, false},
		{"power-flow", PowerFlow, false},
		{"PowerFlow", PowerFlow, false},
		{"lhs", LatinHypercube, false},
		{" Latin-Hypercube ", LatinHypercube, false},
		{"monte-carlo", PowerFlow, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKind_String_UnknownBehavesAsPowerFlow(t *testing.T) {
	assert.Equal(t, "power-flow", PowerFlow.String())
	assert.Equal(t, "latin-hypercube", LatinHypercube.String())
	assert.Equal(t, "power-flow", Kind(42).String())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	noSamples := DefaultConfig()
	noSamples.Samples = 0
	assert.Error(t, noSamples.Validate())

	// samples are irrelevant for power flow
	noSamples.Kind = PowerFlow
	assert.NoError(t, noSamples.Validate())

	negTrigger := DefaultConfig()
	negTrigger.TriggeringIdx = []int{1, -2}
	assert.ErrorContains(t, negTrigger.Validate(), "triggering[1]")
}
