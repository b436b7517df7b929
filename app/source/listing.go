package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

const (
	listingTimeLayout = "01/02/2006 03:04:05 PM"
	listingPrefix     = "I-79"
	listingDefault    = "Traffic Event"
)

// OfficialListingAdapter reads a travel delay page and keeps the I-79
// entries reported in the target counties.
type OfficialListingAdapter struct {
	config  *Config
	fetcher *Fetcher
	scope   Scope
}

func NewOfficialListingAdapter(c *Config, fetcher *Fetcher, scope Scope) *OfficialListingAdapter {
	return &OfficialListingAdapter{config: c, fetcher: fetcher, scope: scope}
}

func (a *OfficialListingAdapter) Fetch(ctx context.Context) (Result, error) {
	result := Result{Source: a.config.Name}

	data, err := a.fetcher.Get(ctx, a.config.URL)
	result.Requests = a.fetcher.Requests()
	if err != nil {
		return result, unavailable(a.config.Name, fmt.Errorf("failed to fetch listing: %w", err))
	}

	entries := ParseListing(HTMLToLines(string(data)), a.config.URL)
	for _, entry := range entries {
		if !a.inScope(entry) {
			continue
		}
		entry.Source = a.config.Source
		result.Articles = append(result.Articles, entry)
	}

	slog.Debug("Listing parsed", "source", a.config.Name, "entries", len(entries), "kept", len(result.Articles))

	return result, nil
}

func (a *OfficialListingAdapter) inScope(entry RawArticle) bool {
	county := strings.ToLower(strings.TrimSpace(entry.County))
	if len(a.scope.Counties) > 0 && !slices.Contains(a.scope.Counties, county) {
		return false
	}
	return entry.Summary == "" || strings.Contains(strings.ToLower(entry.Summary), "i-79")
}

// ParseListing scans text lines for blocks headed by "I-79" and collects
// their labelled fields until the next interstate heading.
func ParseListing(lines []string, listingURL string) []RawArticle {
	var entries []RawArticle

	for i := 0; i < len(lines); {
		if !isCorridorHeading(lines[i]) {
			i++
			continue
		}

		event := strings.TrimSpace(strings.Replace(lines[i], listingPrefix, "", 1))
		if event == "" {
			event = listingDefault
		}

		var lastUpdated, county, description, notes string
		j := i + 1
		for ; j < len(lines); j++ {
			line := lines[j]
			if strings.HasPrefix(line, "I-") {
				break
			}
			if value, ok := labelled(line, "Last Updated:"); ok {
				lastUpdated = value
			} else if value, ok := labelled(line, "County:"); ok {
				county = value
			} else if value, ok := labelled(line, "Description:"); ok {
				description = value
			} else if value, ok := labelled(line, "Comments:"); ok {
				notes = value
			}
		}

		blob := strings.TrimSpace(strings.Join([]string{listingPrefix, event, description, notes}, " "))
		sum := sha1.Sum([]byte(blob))

		entries = append(entries, RawArticle{
			Title:       listingPrefix + " " + event,
			URL:         listingURL + "#i79-" + hex.EncodeToString(sum[:])[:10],
			PublishedAt: parseListingTime(lastUpdated),
			Summary:     description,
			SourceType:  SourceTypeOfficial,
			County:      county,
			Notes:       notes,
		})

		i = max(i+1, j)
	}

	return entries
}

// isCorridorHeading matches "I-79" but not "I-795".
func isCorridorHeading(line string) bool {
	rest, ok := strings.CutPrefix(line, listingPrefix)
	return ok && (rest == "" || rest[0] < '0' || rest[0] > '9')
}

func labelled(line, label string) (string, bool) {
	if !strings.HasPrefix(line, label) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, label)), true
}

func parseListingTime(raw string) *time.Time {
	parsed, err := time.Parse(listingTimeLayout, strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &parsed
}
