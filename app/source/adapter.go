package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Adapter fetches one endpoint. It fails only when the whole endpoint is
// unusable; malformed items are skipped and counted.
type Adapter interface {
	Fetch(ctx context.Context) (Result, error)
}

// Scope carries run-wide bounds shared by all adapters.
type Scope struct {
	Cutoff   time.Time // start of the historical window
	Counties []string  // lower-cased target county names
}

func NewAdapter(c *Config, fetcher *Fetcher, scope Scope) (Adapter, error) {
	switch c.Type {
	case AdapterFeed:
		return NewFeedAdapter(c, fetcher), nil
	case AdapterPaginatedAPI:
		return NewPaginatedAPIAdapter(c, fetcher, scope), nil
	case AdapterSitemap:
		return NewSitemapAdapter(c, fetcher, scope), nil
	case AdapterOfficialListing:
		return NewOfficialListingAdapter(c, fetcher, scope), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.Type)
	}
}

// parseTime reads loose feed and API timestamps; naive values are UTC.
func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}

func absoluteLink(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return raw, true
}

func beforeCutoff(t *time.Time, cutoff time.Time) bool {
	return t != nil && !cutoff.IsZero() && t.Before(cutoff)
}
