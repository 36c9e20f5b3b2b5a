package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		p      float64
		want   float32
	}{
		{name: "empty", scores: nil, p: 50, want: 0},
		{name: "single value", scores: []float32{3.5}, p: 95, want: 3.5},
		{name: "median", scores: []float32{1, 2, 3, 4, 5}, p: 50, want: 3},
		{name: "quartile", scores: []float32{1, 2, 3, 4, 5}, p: 25, want: 2},
		{name: "interpolated", scores: []float32{1, 2, 3, 4, 5}, p: 95, want: 4.8},
		{name: "p0 is min", scores: []float32{5, 1, 3}, p: 0, want: 1},
		{name: "p100 is max", scores: []float32{5, 1, 3}, p: 100, want: 5},
		{name: "unsorted input", scores: []float32{4, 1, 5, 2, 3}, p: 50, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.scores, tt.p)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestPercentile_DoesNotModifyInput(t *testing.T) {
	scores := []float32{4, 1, 5, 2, 3}
	Percentile(scores, 95)
	assert.Equal(t, []float32{4, 1, 5, 2, 3}, scores)
}

func TestPercentile_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	scores := make([]float32, 10000)
	for i := range scores {
		scores[i] = rng.Float32() * 20
	}

	first := Percentile(scores, 95)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Percentile(scores, 95))
	}
}

func TestThresholdPolicy_EffectiveThreshold(t *testing.T) {
	t.Run("under budget keeps base", func(t *testing.T) {
		p := ThresholdPolicy{Base: 9.5, PercentileCap: 95, MaxEdgesPerTile: 4}

		scores := []float32{1, 2, 9.6, 9.7, 3}
		assert.Equal(t, float32(9.5), p.EffectiveThreshold(scores))
	})

	t.Run("over budget raises to percentile", func(t *testing.T) {
		p := ThresholdPolicy{Base: 5, PercentileCap: 50, MaxEdgesPerTile: 2}

		// Five candidates at base, budget two. The median of the block
		// becomes the new cutoff.
		scores := []float32{6, 7, 8, 9, 10}
		assert.InDelta(t, float32(8), p.EffectiveThreshold(scores), 1e-6)
	})

	t.Run("raised threshold never drops below base", func(t *testing.T) {
		p := ThresholdPolicy{Base: 9.5, PercentileCap: 50, MaxEdgesPerTile: 2}

		// Most of the block sits far below base, so the percentile lands
		// below it and gets clamped.
		scores := make([]float32, 100)
		for i := range scores {
			scores[i] = 1
		}
		scores[10] = 9.6
		scores[20] = 9.7
		scores[30] = 9.8
		scores[40] = 9.9

		assert.Equal(t, float32(9.5), p.EffectiveThreshold(scores))
	})

	t.Run("budget boundary is inclusive", func(t *testing.T) {
		p := ThresholdPolicy{Base: 5, PercentileCap: 95, MaxEdgesPerTile: 3}

		scores := []float32{6, 7, 8, 1, 2}
		assert.Equal(t, float32(5), p.EffectiveThreshold(scores))
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero tile size", mutate: func(c *Config) { c.TileSize = 0 }},
		{name: "negative sparsity", mutate: func(c *Config) { c.TargetSparsity = -0.1 }},
		{name: "sparsity above one", mutate: func(c *Config) { c.TargetSparsity = 1.5 }},
		{name: "zero multiplier", mutate: func(c *Config) { c.MaxEdgesMultiplier = 0 }},
		{name: "percentile above 100", mutate: func(c *Config) { c.PercentileCap = 101 }},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfig_MaxEdgesPerTile(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20000, cfg.MaxEdgesPerTile())

	cfg = Config{TileSize: 4, TargetSparsity: 0.1, MaxEdgesMultiplier: 2}
	assert.Equal(t, 3, cfg.MaxEdgesPerTile())
}
