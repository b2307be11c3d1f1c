// Package provider is the client for the upstream fund data API.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundradar/fundradar/pkg/fund"
)

const (
	defaultBatchSize  = 10
	defaultBatchPause = 500 * time.Millisecond
	defaultTimeout    = 30 * time.Second
)

// Config configures the upstream client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	BatchSize  int           // concurrent return fetches per batch
	BatchPause time.Duration // pacing delay between batches
}

// Client talks to the fund data API. Per-fund return fetches run in
// fixed-size concurrent batches with a pacing delay between batches to
// respect upstream rate limits.
type Client struct {
	client     *http.Client
	baseURL    string
	batchSize  int
	batchPause time.Duration
	log        zerolog.Logger
}

// New creates a provider client.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = defaultBatchPause
	}
	return &Client{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		batchSize:  cfg.BatchSize,
		batchPause: cfg.BatchPause,
		log:        log,
	}
}

type fundRecord struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	FundType string  `json:"fund_type"`
	Category string  `json:"category"`
	Plan     string  `json:"plan"`
	Scheme   string  `json:"scheme"`
	AUM      float64 `json:"aum"`
	Rating   int     `json:"rating"`
}

type returnsRecord struct {
	Code    string         `json:"code"`
	Returns map[string]any `json:"returns"`
}

type categoryRecord struct {
	Category   string         `json:"category"`
	ReportDate string         `json:"report_date"`
	Returns    map[string]any `json:"returns"`
}

// ListFunds fetches the full fund universe.
func (c *Client) ListFunds(ctx context.Context) ([]fund.Fund, error) {
	var records []fundRecord
	if err := c.getJSON(ctx, "/api/v1/funds", &records); err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}

	funds := make([]fund.Fund, 0, len(records))
	for _, r := range records {
		if r.Code == "" {
			continue
		}
		funds = append(funds, fund.Fund{
			Code:     r.Code,
			Name:     r.Name,
			Type:     r.FundType,
			Category: r.Category,
			Plan:     r.Plan,
			Scheme:   r.Scheme,
			AUM:      r.AUM,
			Rating:   r.Rating,
		})
	}
	return funds, nil
}

// FetchReturns fetches period returns for the given fund codes. Funds
// that fail to fetch are logged and skipped; one fund's bad record never
// aborts the batch. Returns a map keyed by fund code.
func (c *Client) FetchReturns(ctx context.Context, codes []string) (map[string]fund.Returns, error) {
	out := make(map[string]fund.Returns, len(codes))
	var mu sync.Mutex

	for start := 0; start < len(codes); start += c.batchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(c.batchPause):
			}
		}

		end := start + c.batchSize
		if end > len(codes) {
			end = len(codes)
		}

		var wg sync.WaitGroup
		for _, code := range codes[start:end] {
			wg.Add(1)
			go func(code string) {
				defer wg.Done()

				returns, err := c.fetchFundReturns(ctx, code)
				if err != nil {
					c.log.Warn().Err(err).Str("fund", code).Msg("skipping fund returns")
					return
				}

				mu.Lock()
				out[code] = returns
				mu.Unlock()
			}(code)
		}
		wg.Wait()
	}

	return out, nil
}

// CategoryAverages fetches the raw per-category average returns,
// refreshed wholesale each run.
func (c *Client) CategoryAverages(ctx context.Context) ([]fund.CategoryAverage, error) {
	var records []categoryRecord
	if err := c.getJSON(ctx, "/api/v1/categories/averages", &records); err != nil {
		return nil, fmt.Errorf("category averages: %w", err)
	}

	averages := make([]fund.CategoryAverage, 0, len(records))
	for _, r := range records {
		if r.Category == "" {
			continue
		}
		reportDate, _ := time.Parse("2006-01-02", r.ReportDate)
		averages = append(averages, fund.CategoryAverage{
			Category:   r.Category,
			Returns:    c.parseReturns(r.Category, r.Returns),
			ReportDate: reportDate,
		})
	}
	return averages, nil
}

// Ping verifies the upstream API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/funds", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping provider: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) fetchFundReturns(ctx context.Context, code string) (fund.Returns, error) {
	var record returnsRecord
	path := fmt.Sprintf("/api/v1/funds/%s/returns", code)
	if err := c.getJSON(ctx, path, &record); err != nil {
		return nil, err
	}
	return c.parseReturns(code, record.Returns), nil
}

// parseReturns coerces the upstream period->value map, which mixes JSON
// numbers, numeric strings, and "no data" sentinels. Unparseable values
// are logged and treated as absent so the rest of the record survives.
func (c *Client) parseReturns(subject string, raw map[string]any) fund.Returns {
	returns := make(fund.Returns, len(raw))
	for _, period := range fund.AllPeriods() {
		v, ok := raw[string(period)]
		if !ok || v == nil {
			continue
		}

		switch val := v.(type) {
		case float64:
			returns[period] = fund.Float(val)
		case string:
			parsed, err := fund.ParsePercent(val)
			if err != nil {
				c.log.Warn().Err(err).
					Str("subject", subject).
					Str("period", string(period)).
					Msg("invalid return value, treating as absent")
				continue
			}
			if parsed != nil {
				returns[period] = parsed
			}
		default:
			c.log.Warn().
				Str("subject", subject).
				Str("period", string(period)).
				Msgf("unexpected return type %T, treating as absent", v)
		}
	}
	return returns
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fundradar/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
