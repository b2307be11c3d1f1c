package scoring

import (
	"gonum.org/v1/gonum/floats"

	"github.com/fundradar/fundradar/pkg/fund"
)

// Default output range for normalized scores.
const (
	DefaultLowerBound = 50
	DefaultUpperBound = 100
)

// Normalizer rescales raw scores within each peer group onto a bounded
// output range so scores are comparable across groups.
type Normalizer struct {
	lower float64
	upper float64
}

// NewNormalizer creates a normalizer for the [lower, upper] range.
// An unset range falls back to [50, 100].
func NewNormalizer(lower, upper float64) *Normalizer {
	if lower == 0 && upper == 0 {
		lower, upper = DefaultLowerBound, DefaultUpperBound
	}
	return &Normalizer{lower: lower, upper: upper}
}

// groupBounds holds the raw-score extremes of one peer group.
type groupBounds struct {
	min float64
	max float64
}

// Normalize assigns final scores by min-max rescaling raw scores within
// each peer group. It must see the complete peer set at once: min/max are
// computed per group, so a partial subset would produce stale bounds.
//
// Group policy, given the group's raw max/min:
//   - max <= 0: nothing beat its benchmark, ranking is meaningless; every
//     fund gets the lower bound.
//   - max == min: a perfect tie (or single fund) is "all equally best";
//     every fund gets the upper bound.
//   - otherwise: linear rescale onto [lower, upper].
//
// Funds with a nil raw score are excluded from the output; absence is
// preserved, never coerced to zero.
func (n *Normalizer) Normalize(funds []fund.ScoredFund) []fund.ScoredFund {
	groups := make(map[string][]float64)
	for i := range funds {
		if funds[i].RawScore == nil {
			continue
		}
		key := fund.PeerGroupKey(funds[i].Type, funds[i].Category)
		groups[key] = append(groups[key], *funds[i].RawScore)
	}

	bounds := make(map[string]groupBounds, len(groups))
	for key, raws := range groups {
		bounds[key] = groupBounds{min: floats.Min(raws), max: floats.Max(raws)}
	}

	out := make([]fund.ScoredFund, 0, len(funds))
	for i := range funds {
		if funds[i].RawScore == nil {
			continue
		}
		b := bounds[fund.PeerGroupKey(funds[i].Type, funds[i].Category)]

		var final float64
		switch {
		case b.max <= 0:
			final = n.lower
		case b.max == b.min:
			final = n.upper
		default:
			raw := *funds[i].RawScore
			final = round2((raw-b.min)/(b.max-b.min)*(n.upper-n.lower) + n.lower)
		}

		scored := funds[i]
		scored.FinalScore = &final
		out = append(out, scored)
	}
	return out
}
