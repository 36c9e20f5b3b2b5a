package engine

import (
	"math"
	"slices"
)

// ThresholdPolicy decides the score cutoff for one tile's block. It is a
// value type with no hidden state: the effective threshold is a pure
// function of the block's score distribution, so identical runs produce
// identical thresholds and identical edge sets.
type ThresholdPolicy struct {
	// Base is the floor threshold. The effective threshold never drops
	// below it.
	Base float32

	// PercentileCap is the percentile (0-100) used when a tile overruns
	// its budget.
	PercentileCap float64

	// MaxEdgesPerTile is the candidate budget per tile block.
	MaxEdgesPerTile int
}

// EffectiveThreshold returns the cutoff to apply to the given score block.
// If the number of scores at or above Base fits the budget, Base is
// returned unchanged. Otherwise the threshold is raised to the
// PercentileCap-th percentile of the block, clamped to at least Base.
func (p ThresholdPolicy) EffectiveThreshold(scores []float32) float32 {
	candidates := 0
	for _, s := range scores {
		if s >= p.Base {
			candidates++
		}
	}
	if candidates <= p.MaxEdgesPerTile {
		return p.Base
	}

	raised := Percentile(scores, p.PercentileCap)
	if raised < p.Base {
		return p.Base
	}
	return raised
}

// Percentile returns the p-th percentile (0-100) of scores using linear
// interpolation between the two nearest order statistics. The input is not
// modified. Identical multisets always produce identical results; the
// scan's determinism depends on that.
func Percentile(scores []float32, p float64) float32 {
	if len(scores) == 0 {
		return 0
	}

	sorted := slices.Clone(scores)
	slices.Sort(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	frac := rank - float64(lo)
	if frac == 0 || lo+1 >= len(sorted) {
		return sorted[lo]
	}

	lov := float64(sorted[lo])
	hiv := float64(sorted[lo+1])
	return float32(lov + frac*(hiv-lov))
}
