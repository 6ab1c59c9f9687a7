package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name       string
		model      string
		prompt     int
		completion int
		want       float64
	}{
		// 0.15*1000/1M + 0.60*500/1M
		{"gpt-4o-mini via openrouter", "openai/gpt-4o-mini", 1000, 500, 0.00045},
		{"gpt-4o-mini direct", "gpt-4o-mini", 1000, 500, 0.00045},
		{"haiku", "claude-3-5-haiku-latest", 10_000, 1_000, 0.012},
		{"large counts", "openai/gpt-4o-mini", 100_000, 50_000, 0.045},
		{"zero tokens", "gpt-4o", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := CalculateCost(tt.model, tt.prompt, tt.completion)
			require.NotNil(t, cost)
			assert.InDelta(t, tt.want, *cost, 1e-12)
		})
	}
}

func TestCalculateCostUnknownModel(t *testing.T) {
	assert.Nil(t, CalculateCost("vendor/unknown", 1000, 500))
	assert.Nil(t, CalculateCost("", 1, 1))
}

func TestGetPricing(t *testing.T) {
	p, ok := GetPricing("openai/gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, "0.15", p.Prompt.String())
	assert.Equal(t, "0.6", p.Completion.String())

	_, ok = GetPricing("unknown/model")
	assert.False(t, ok)
}
