package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundradar/fundradar/pkg/fund"
)

func largeCapRaw(code string, raw float64) fund.ScoredFund {
	return fund.ScoredFund{
		Code:     code,
		Type:     "Equity",
		Category: "Large Cap Fund",
		RawScore: fund.Float(raw),
	}
}

func finalScores(t *testing.T, funds []fund.ScoredFund) map[string]float64 {
	t.Helper()
	out := make(map[string]float64, len(funds))
	for _, f := range funds {
		require.NotNil(t, f.FinalScore, "fund %s has no final score", f.Code)
		out[f.Code] = *f.FinalScore
	}
	return out
}

func TestNormalizeAllNonPositiveGroup(t *testing.T) {
	// max <= 0: nobody beat the benchmark, everyone gets the lower bound.
	norm := NewNormalizer(0, 0)

	got := norm.Normalize([]fund.ScoredFund{
		largeCapRaw("a", -2),
		largeCapRaw("b", -1),
		largeCapRaw("c", 0),
	})
	assert.Equal(t, map[string]float64{"a": 50, "b": 50, "c": 50}, finalScores(t, got))
}

func TestNormalizeTiedGroup(t *testing.T) {
	// max == min with a positive max: all equally best.
	norm := NewNormalizer(0, 0)

	got := norm.Normalize([]fund.ScoredFund{
		largeCapRaw("a", 3),
		largeCapRaw("b", 3),
		largeCapRaw("c", 3),
	})
	assert.Equal(t, map[string]float64{"a": 100, "b": 100, "c": 100}, finalScores(t, got))
}

func TestNormalizeLinearRescale(t *testing.T) {
	norm := NewNormalizer(0, 0)

	got := norm.Normalize([]fund.ScoredFund{
		largeCapRaw("a", 0),
		largeCapRaw("b", 5),
		largeCapRaw("c", 10),
	})
	assert.Equal(t, map[string]float64{"a": 50, "b": 75, "c": 100}, finalScores(t, got))
}

func TestNormalizeIdempotent(t *testing.T) {
	// Feeding final scores back in as raw scores reproduces them, both
	// for a spread group and for a tie.
	norm := NewNormalizer(0, 0)

	for _, raws := range [][]float64{{0, 5, 10}, {3, 3, 3}} {
		first := norm.Normalize([]fund.ScoredFund{
			largeCapRaw("a", raws[0]),
			largeCapRaw("b", raws[1]),
			largeCapRaw("c", raws[2]),
		})

		again := make([]fund.ScoredFund, len(first))
		for i, f := range first {
			again[i] = largeCapRaw(f.Code, *f.FinalScore)
		}
		assert.Equal(t, finalScores(t, first), finalScores(t, norm.Normalize(again)))
	}
}

func TestNormalizeGroupsAreIndependent(t *testing.T) {
	norm := NewNormalizer(0, 0)

	midCap := fund.ScoredFund{
		Code:     "m1",
		Type:     "Equity",
		Category: "Mid Cap Fund",
		RawScore: fund.Float(2),
	}
	got := norm.Normalize([]fund.ScoredFund{
		largeCapRaw("a", 0),
		largeCapRaw("b", 10),
		midCap,
	})

	// The lone mid-cap fund is its own group: a positive tie.
	assert.Equal(t, map[string]float64{"a": 50, "b": 100, "m1": 100}, finalScores(t, got))
}

func TestNormalizeSkipsNilRawScores(t *testing.T) {
	norm := NewNormalizer(0, 0)

	got := norm.Normalize([]fund.ScoredFund{
		largeCapRaw("a", 0),
		{Code: "unscored", Type: "Equity", Category: "Large Cap Fund"},
		largeCapRaw("b", 10),
	})

	require.Len(t, got, 2)
	assert.Equal(t, map[string]float64{"a": 50, "b": 100}, finalScores(t, got))
}

func TestNormalizeEquityFallbackBucket(t *testing.T) {
	// Equity funds without a category land in one shared bucket.
	norm := NewNormalizer(0, 0)

	got := norm.Normalize([]fund.ScoredFund{
		{Code: "x", Type: "Equity", RawScore: fund.Float(1)},
		{Code: "y", Type: "Equity", RawScore: fund.Float(3)},
	})
	assert.Equal(t, map[string]float64{"x": 50, "y": 100}, finalScores(t, got))
}

func TestNormalizeCustomBounds(t *testing.T) {
	norm := NewNormalizer(0, 10)

	got := norm.Normalize([]fund.ScoredFund{
		largeCapRaw("a", 1),
		largeCapRaw("b", 2),
		largeCapRaw("c", 3),
	})
	assert.Equal(t, map[string]float64{"a": 0, "b": 5, "c": 10}, finalScores(t, got))
}

func TestNormalizeFinalScoresWithinBounds(t *testing.T) {
	norm := NewNormalizer(0, 0)

	got := norm.Normalize([]fund.ScoredFund{
		largeCapRaw("a", -12.7),
		largeCapRaw("b", -0.31),
		largeCapRaw("c", 0.02),
		largeCapRaw("d", 4.96),
		largeCapRaw("e", 18.4),
	})
	for code, final := range finalScores(t, got) {
		assert.GreaterOrEqual(t, final, 50.0, "fund %s", code)
		assert.LessOrEqual(t, final, 100.0, "fund %s", code)
	}
}
