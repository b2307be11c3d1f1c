// Package screen decides which discovered funds are eligible for scoring.
package screen

import (
	"strings"

	"github.com/fundradar/fundradar/pkg/fund"
)

// Rules configures the eligibility predicates. Zero values disable the
// corresponding predicate.
type Rules struct {
	GrowthOnly    bool
	DirectOnly    bool
	OpenEndedOnly bool
	MinAUM        float64
	MinRating     int // funds rated below this are rejected; 0/unrated pass
	ExcludeNames  []string
}

// predicate is one independent eligibility check.
type predicate struct {
	name string
	pass func(f *fund.Fund) bool
}

// Screen applies a fixed set of independent predicates to fund records
// and tallies rejections per predicate.
type Screen struct {
	predicates []predicate
	rejections map[string]int
}

// New builds a screen from the configured rules.
func New(rules Rules) *Screen {
	var preds []predicate

	if rules.GrowthOnly {
		preds = append(preds, predicate{"growth_plan", func(f *fund.Fund) bool {
			return containsFold(f.Plan, "growth") || containsFold(f.Name, "growth")
		}})
	}
	if rules.DirectOnly {
		preds = append(preds, predicate{"direct_plan", func(f *fund.Fund) bool {
			return containsFold(f.Plan, "direct") || containsFold(f.Name, "direct")
		}})
	}
	if rules.OpenEndedOnly {
		preds = append(preds, predicate{"open_ended", func(f *fund.Fund) bool {
			return f.Scheme == "" || containsFold(f.Scheme, "open")
		}})
	}
	if rules.MinAUM > 0 {
		min := rules.MinAUM
		preds = append(preds, predicate{"min_aum", func(f *fund.Fund) bool {
			return f.AUM >= min
		}})
	}
	if rules.MinRating > 0 {
		min := rules.MinRating
		preds = append(preds, predicate{"min_rating", func(f *fund.Fund) bool {
			return f.Rating == 0 || f.Rating >= min
		}})
	}
	if len(rules.ExcludeNames) > 0 {
		exclude := make([]string, len(rules.ExcludeNames))
		for i, s := range rules.ExcludeNames {
			exclude[i] = strings.ToLower(s)
		}
		preds = append(preds, predicate{"excluded_name", func(f *fund.Fund) bool {
			name := strings.ToLower(f.Name)
			for _, ex := range exclude {
				if strings.Contains(name, ex) {
					return false
				}
			}
			return true
		}})
	}

	return &Screen{predicates: preds, rejections: make(map[string]int)}
}

// Eligible reports whether every predicate passes. All predicates are
// evaluated so rejection tallies stay order-insensitive.
func (s *Screen) Eligible(f *fund.Fund) bool {
	ok := true
	for _, p := range s.predicates {
		if !p.pass(f) {
			s.rejections[p.name]++
			ok = false
		}
	}
	return ok
}

// Apply returns the eligible subset of funds, preserving order.
func (s *Screen) Apply(funds []fund.Fund) []fund.Fund {
	out := make([]fund.Fund, 0, len(funds))
	for i := range funds {
		if s.Eligible(&funds[i]) {
			out = append(out, funds[i])
		}
	}
	return out
}

// Rejections returns per-predicate rejection counts accumulated so far.
func (s *Screen) Rejections() map[string]int {
	out := make(map[string]int, len(s.rejections))
	for k, v := range s.rejections {
		out[k] = v
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
