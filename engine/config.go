package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid scan config")

// Reference scan defaults.
const (
	DefaultTileSize           = 500
	DefaultBaseThreshold      = 9.5
	DefaultTargetSparsity     = 0.02
	DefaultMaxEdgesMultiplier = 4.0
	DefaultPercentileCap      = 95.0
)

// Config controls the tiled scan.
type Config struct {
	// TileSize is the number of corpus rows per tile (T). Peak score memory
	// per worker is TileSize squared float32s.
	TileSize int

	// BaseThreshold is the minimum dot score for an edge candidate.
	BaseThreshold float32

	// TargetSparsity is the expected retained fraction of the N x N score
	// grid. It sizes the edge buffer and the per-tile budget.
	TargetSparsity float64

	// MaxEdgesMultiplier is the slack factor over the per-tile target before
	// the percentile adjustment kicks in.
	MaxEdgesMultiplier float64

	// PercentileCap is the percentile (0-100) a hot tile's threshold is
	// raised to, never below BaseThreshold.
	PercentileCap float64

	// Workers is the number of goroutines scoring tile pairs.
	Workers int
}

// DefaultConfig returns the reference scan configuration.
func DefaultConfig() Config {
	return Config{
		TileSize:           DefaultTileSize,
		BaseThreshold:      DefaultBaseThreshold,
		TargetSparsity:     DefaultTargetSparsity,
		MaxEdgesMultiplier: DefaultMaxEdgesMultiplier,
		PercentileCap:      DefaultPercentileCap,
		Workers:            1,
	}
}

// Validate checks the configuration for values the scan cannot run with.
func (c Config) Validate() error {
	if c.TileSize < 1 {
		return fmt.Errorf("%w: tile size must be positive, got %d", ErrInvalidConfig, c.TileSize)
	}
	if c.TargetSparsity <= 0 || c.TargetSparsity > 1 {
		return fmt.Errorf("%w: target sparsity must be in (0, 1], got %g", ErrInvalidConfig, c.TargetSparsity)
	}
	if c.MaxEdgesMultiplier <= 0 {
		return fmt.Errorf("%w: max edges multiplier must be positive, got %g", ErrInvalidConfig, c.MaxEdgesMultiplier)
	}
	if c.PercentileCap < 0 || c.PercentileCap > 100 {
		return fmt.Errorf("%w: percentile cap must be in [0, 100], got %g", ErrInvalidConfig, c.PercentileCap)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// MaxEdgesPerTile is the per-tile candidate budget derived from the tile
// area, the target sparsity and the slack multiplier.
func (c Config) MaxEdgesPerTile() int {
	area := float64(c.TileSize) * float64(c.TileSize)
	return int(area * c.TargetSparsity * c.MaxEdgesMultiplier)
}

// Policy builds the threshold policy for this configuration.
func (c Config) Policy() ThresholdPolicy {
	return ThresholdPolicy{
		Base:            c.BaseThreshold,
		PercentileCap:   c.PercentileCap,
		MaxEdgesPerTile: c.MaxEdgesPerTile(),
	}
}
