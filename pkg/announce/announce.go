// Package announce watches fund-house RSS/Atom feeds for scheme and NFO
// announcements.
package announce

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/fundradar/fundradar/internal/store"
)

// Feed is a named announcement feed URL.
type Feed struct {
	Name string
	URL  string
}

// Watcher polls announcement feeds and converts entries into store
// records. Entries older than the cutoff window are skipped.
type Watcher struct {
	client   *http.Client
	parser   *gofeed.Parser
	feeds    []Feed
	keywords []string
	exclude  []string
	maxAge   time.Duration
	log      zerolog.Logger
}

// New creates a watcher. Keywords (if any) must match an entry's title or
// description; exclusions always reject.
func New(feeds []Feed, keywords, exclude []string, maxAge time.Duration, log zerolog.Logger) *Watcher {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Watcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		parser:   gofeed.NewParser(),
		feeds:    feeds,
		keywords: lowered(keywords),
		exclude:  lowered(exclude),
		maxAge:   maxAge,
		log:      log,
	}
}

// Collect polls every configured feed. A failing feed is logged and
// skipped; the rest still report.
func (w *Watcher) Collect(ctx context.Context) ([]store.Announcement, error) {
	var all []store.Announcement
	for _, feed := range w.feeds {
		anns, err := w.collectFeed(ctx, feed)
		if err != nil {
			w.log.Warn().Err(err).Str("feed", feed.Name).Msg("announcement feed failed")
			continue
		}
		all = append(all, anns...)
	}
	return all, nil
}

func (w *Watcher) collectFeed(ctx context.Context, feed Feed) ([]store.Announcement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "fundradar/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := w.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}

	cutoff := time.Now().Add(-w.maxAge)
	now := time.Now().UTC()

	var anns []store.Announcement
	for _, entry := range parsed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}

		if !w.matches(entry.Title + " " + entry.Description) {
			continue
		}

		id := entry.GUID
		if id == "" {
			id = entry.Link
		}

		anns = append(anns, store.Announcement{
			ID:          fmt.Sprintf("%s:%s", feed.Name, id),
			Feed:        feed.Name,
			Title:       entry.Title,
			URL:         entry.Link,
			PublishedAt: published,
			CollectedAt: now,
		})
	}
	return anns, nil
}

func (w *Watcher) matches(text string) bool {
	lower := strings.ToLower(text)
	for _, ex := range w.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}
	if len(w.keywords) == 0 {
		return true
	}
	for _, kw := range w.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func lowered(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
