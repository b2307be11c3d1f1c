package scoring

import (
	"gonum.org/v1/gonum/stat"

	"github.com/fundradar/fundradar/pkg/fund"
)

// DefaultBlendedName is the synthetic category the blended group is
// published under. It matches the peer-group key non-equity funds
// resolve to, so calculator lookups find it.
const DefaultBlendedName = "Hybrid"

// Aggregator reduces the raw upstream category-average list to the set
// used for scoring: an allow-list of primary categories kept as-is plus
// one synthetic category blending the hybrid-like group.
type Aggregator struct {
	primary     map[string]bool
	blended     map[string]bool
	blendedName string
}

// NewAggregator creates an aggregator from the two allow-lists.
func NewAggregator(primary, blended []string, blendedName string) *Aggregator {
	if blendedName == "" {
		blendedName = DefaultBlendedName
	}
	a := &Aggregator{
		primary:     make(map[string]bool, len(primary)),
		blended:     make(map[string]bool, len(blended)),
		blendedName: blendedName,
	}
	for _, c := range primary {
		a.primary[c] = true
	}
	for _, c := range blended {
		a.blended[c] = true
	}
	return a
}

// Aggregate filters raw categories down to the primary allow-list and
// appends the blended synthetic category. Pure; persistence is the
// caller's concern.
func (a *Aggregator) Aggregate(raw []fund.CategoryAverage) []fund.CategoryAverage {
	out := make([]fund.CategoryAverage, 0, len(raw)+1)
	var members []fund.CategoryAverage

	for _, ca := range raw {
		switch {
		case a.primary[ca.Category]:
			out = append(out, ca)
		case a.blended[ca.Category]:
			members = append(members, ca)
		}
	}

	if len(members) > 0 {
		out = append(out, a.blend(members))
	}
	return out
}

// blend averages the members per period, skipping absent values
// independently per period. A period nobody reports is omitted.
// Members are expected to share a reporting date; the first one's is used.
func (a *Aggregator) blend(members []fund.CategoryAverage) fund.CategoryAverage {
	returns := make(fund.Returns)
	for _, period := range fund.AllPeriods() {
		var values []float64
		for _, m := range members {
			if v, ok := m.Returns.Get(period); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		returns[period] = fund.Float(stat.Mean(values, nil))
	}
	return fund.CategoryAverage{
		Category:   a.blendedName,
		Returns:    returns,
		ReportDate: members[0].ReportDate,
	}
}
