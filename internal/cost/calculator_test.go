package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"haiku": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"sonnet": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
	}
}

func TestCall(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name  string
		model string
		usage Usage
		want  float64
	}{
		{
			name:  "haiku simple",
			model: "haiku",
			usage: Usage{InputTokens: 1000000, OutputTokens: 100000},
			want:  0.80 + 0.40,
		},
		{
			name:  "haiku with cache",
			model: "haiku",
			usage: Usage{InputTokens: 500000, OutputTokens: 50000, CacheWriteTokens: 200000, CacheReadTokens: 300000},
			// in 0.40, out 0.20, cw 0.20, cr 0.024
			want: 0.824,
		},
		{
			name:  "sonnet",
			model: "sonnet",
			usage: Usage{InputTokens: 2000, OutputTokens: 1000},
			want:  0.006 + 0.015,
		},
		{
			name:  "free model",
			model: "openai/gpt-oss-20b:free",
			usage: Usage{InputTokens: 5000, OutputTokens: 3000},
			want:  0,
		},
		{
			name:  "unknown model",
			model: "mystery",
			usage: Usage{InputTokens: 5000, OutputTokens: 3000},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Call(tt.model, tt.usage), 1e-9)
		})
	}
}

func TestNewCalculator_MergesDefaults(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{Models: map[string]ModelRate{
		"openai/gpt-oss-20b": {Input: 1, Output: 1},
	}})

	assert.True(t, calc.Known("claude-sonnet-4-5-20250929"))
	assert.True(t, calc.Known("openai/gpt-oss-20b:free"))
	assert.False(t, calc.Known("mystery"))
	assert.InDelta(t, 2.0, calc.Call("openai/gpt-oss-20b", Usage{InputTokens: 1e6, OutputTokens: 1e6}), 1e-9)
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()
	assert.Contains(t, rates.Models, "openai/gpt-oss-20b:free")
	assert.Zero(t, rates.Models["openai/gpt-oss-20b:free"].Input)
}
