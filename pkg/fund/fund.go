package fund

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Period labels a trailing-return window.
type Period string

const (
	Period1W        Period = "1w"
	Period1Y        Period = "1y"
	Period3Y        Period = "3y"
	Period5Y        Period = "5y"
	PeriodInception Period = "inception"
)

// AllPeriods returns every known period, longest-weighted last.
func AllPeriods() []Period {
	return []Period{Period1W, Period1Y, Period3Y, Period5Y, PeriodInception}
}

// Returns maps a period to its trailing return in percent.
// A nil entry (or missing key) means "not available", never zero.
type Returns map[Period]*float64

// Get returns the value for a period, treating NaN and Inf as absent.
func (r Returns) Get(p Period) (float64, bool) {
	v, ok := r[p]
	if !ok || v == nil {
		return 0, false
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// Fund is one mutual fund scheme as discovered upstream.
type Fund struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`     // broad peer group, e.g. "Equity", "Hybrid"
	Category string  `json:"category"` // specific category, e.g. "Large Cap Fund"
	Plan     string  `json:"plan"`
	Scheme   string  `json:"scheme"` // open/close ended
	AUM      float64 `json:"aum"`    // assets under management, crores
	Rating   int     `json:"rating"` // 0 = unrated
	Returns  Returns `json:"returns,omitempty"`
}

// ReturnProfile is the scoring input for one fund.
type ReturnProfile struct {
	Code     string
	Type     string
	Category string
	Returns  Returns
}

// Profile extracts the scoring input from a fund record.
func (f *Fund) Profile() ReturnProfile {
	return ReturnProfile{Code: f.Code, Type: f.Type, Category: f.Category, Returns: f.Returns}
}

// CategoryAverage is one peer category's benchmark returns.
// Refreshed wholesale every run, keyed by category name.
type CategoryAverage struct {
	Category   string    `json:"category"`
	Returns    Returns   `json:"returns"`
	ReportDate time.Time `json:"report_date"`
}

// ScoredFund carries a fund's raw and normalized scores.
// Nil scores mean the fund has not been scored, never zero.
type ScoredFund struct {
	Code       string    `json:"code"`
	Name       string    `json:"name,omitempty"`
	Type       string    `json:"type"`
	Category   string    `json:"category"`
	RawScore   *float64  `json:"raw_score"`
	FinalScore *float64  `json:"final_score"`
	ScoredAt   time.Time `json:"scored_at"`
}

// Fallback peer-group buckets for funds with missing classification.
const (
	GroupEquityOther = "equity_other"
	GroupOther       = "other"
)

// PeerGroupKey resolves the bucket a fund competes in. Equity funds
// compete within their specific category; everything else is grouped by
// its broad fund type, so all hybrid schemes land in one "Hybrid" bucket
// matching the aggregator's blended category. Used by the calculator's
// average lookup and the normalizer's grouping so the two never diverge.
func PeerGroupKey(fundType, category string) string {
	if strings.Contains(strings.ToLower(fundType), "equity") {
		if category == "" {
			return GroupEquityOther
		}
		return category
	}
	if fundType != "" {
		return fundType
	}
	if category != "" {
		return category
	}
	return GroupOther
}

// ErrInvalidReturn marks a return value that is present but unparseable.
var ErrInvalidReturn = errors.New("invalid return value")

// sentinels upstream uses for "no data"
var absentValues = map[string]bool{
	"": true, "-": true, "--": true, "n.a.": true, "na": true, "n/a": true, "null": true,
}

// ParsePercent parses an upstream return figure. It returns (nil, nil)
// for the provider's known "no data" sentinels and ErrInvalidReturn for
// anything else that is not a number.
func ParsePercent(s string) (*float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if absentValues[strings.ToLower(s)] {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReturn, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReturn, s)
	}
	return &v, nil
}

// Float returns a pointer to v. Convenience for building Returns maps.
func Float(v float64) *float64 { return &v }
