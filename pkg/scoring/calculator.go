package scoring

import (
	"math"

	"github.com/fundradar/fundradar/pkg/fund"
)

// DefaultWeights emphasizes a full market cycle (1y/3y dominant),
// de-emphasizes noisy short windows, and keeps a sliver of recency
// signal. Redistribution in Score makes partial data age-agnostic.
func DefaultWeights() map[fund.Period]float64 {
	return map[fund.Period]float64{
		fund.Period1W: 0.0003,
		fund.Period1Y: 0.35,
		fund.Period3Y: 0.40,
		fund.Period5Y: 0.25,
	}
}

// DefaultNegativePenalty is the multiplier applied to the normalized
// outperformance of periods where the fund's absolute return is negative.
const DefaultNegativePenalty = 1.5

// Calculator turns a fund's period returns into a single raw score.
// It is pure: no store access, no mutation of its inputs.
type Calculator struct {
	weights         map[fund.Period]float64
	negativePenalty float64
}

// NewCalculator creates a calculator with the given base weight table.
// Nil or empty weights fall back to DefaultWeights; a zero penalty falls
// back to DefaultNegativePenalty.
func NewCalculator(weights map[fund.Period]float64, negativePenalty float64) *Calculator {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	if negativePenalty == 0 {
		negativePenalty = DefaultNegativePenalty
	}
	w := make(map[fund.Period]float64, len(weights))
	for p, v := range weights {
		w[p] = v
	}
	return &Calculator{weights: w, negativePenalty: negativePenalty}
}

// Score computes the raw weighted score for one fund.
//
// When an average exists for the fund's peer group, each usable period
// contributes its magnitude-normalized outperformance:
//
//	outperf = (f - c) / max(|c|, 1)
//
// penalized by negativePenalty when the fund's own return is negative.
// Without a usable average the fund's raw period returns are used
// directly. Periods missing on either side are excluded and their weight
// redistributed across the rest; a fund with no usable period scores 0.
func (c *Calculator) Score(p fund.ReturnProfile, averages map[string]fund.CategoryAverage) float64 {
	var avg fund.CategoryAverage
	hasAvg := false
	if averages != nil {
		avg, hasAvg = averages[fund.PeerGroupKey(p.Type, p.Category)]
	}

	sum := 0.0
	totalWeight := 0.0
	for period, weight := range c.weights {
		f, ok := p.Returns.Get(period)
		if !ok {
			continue
		}

		var v float64
		if hasAvg {
			cv, ok := avg.Returns.Get(period)
			if !ok {
				continue
			}
			denom := math.Max(math.Abs(cv), 1)
			v = (f - cv) / denom
			if f < 0 {
				v *= c.negativePenalty
			}
		} else {
			v = f
		}

		sum += v * weight
		totalWeight += weight
	}

	// No usable period at all: defined as zero, not an error.
	if totalWeight == 0 {
		return 0
	}
	return round2(sum / totalWeight)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
