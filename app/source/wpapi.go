package source

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	wpFields       = "id,date_gmt,link,title,excerpt,content"
	wpSummaryChars = 420
)

// PaginatedAPIAdapter walks a WordPress REST search endpoint term by term.
type PaginatedAPIAdapter struct {
	config  *Config
	fetcher *Fetcher
	scope   Scope
}

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID      *int64     `json:"id"`
	DateGMT string     `json:"date_gmt"`
	Link    string     `json:"link"`
	Title   wpRendered `json:"title"`
	Excerpt wpRendered `json:"excerpt"`
	Content wpRendered `json:"content"`
}

func NewPaginatedAPIAdapter(c *Config, fetcher *Fetcher, scope Scope) *PaginatedAPIAdapter {
	return &PaginatedAPIAdapter{config: c, fetcher: fetcher, scope: scope}
}

func (a *PaginatedAPIAdapter) Fetch(ctx context.Context) (Result, error) {
	result := Result{Source: a.config.Name}
	seen := make(map[int64]bool)
	attempted, failed := 0, 0
	exhausted := false
	var lastErr error

terms:
	for _, term := range a.config.Settings.SearchTerms {
		for page := 1; page <= a.config.Settings.MaxPages; page++ {
			if ctx.Err() != nil {
				break terms
			}

			pageURL := a.pageURL(term, page)
			data, err := a.fetcher.Get(ctx, pageURL)
			if errors.Is(err, ErrBudgetExhausted) {
				slog.Debug("Request budget exhausted", "source", a.config.Name)
				exhausted = true
				break terms
			}
			attempted++

			if err != nil {
				if StatusCode(err) == http.StatusBadRequest {
					// WordPress answers 400 past the last page.
					break
				}
				if ctx.Err() != nil {
					break terms
				}
				failed++
				lastErr = err
				slog.Debug("Page request failed", "source", a.config.Name, "term", term, "page", page, "error", err)
				continue
			}

			var rows []json.RawMessage
			if err := json.Unmarshal(data, &rows); err != nil {
				failed++
				lastErr = fmt.Errorf("failed to decode page: %w", err)
				break
			}
			if len(rows) == 0 {
				break
			}

			for _, row := range rows {
				article, id, ok := a.normalizePost(row)
				if !ok {
					result.Skipped++
					continue
				}
				if seen[id] {
					continue
				}
				seen[id] = true
				result.Articles = append(result.Articles, article)
			}
		}
	}

	result.Requests = a.fetcher.Requests()

	if attempted > 0 && failed == attempted {
		return result, unavailable(a.config.Name, fmt.Errorf("all %d requests failed: %w", attempted, lastErr))
	}
	if attempted == 0 && exhausted {
		return result, unavailable(a.config.Name, ErrBudgetExhausted)
	}
	if attempted == 0 && ctx.Err() != nil {
		return result, unavailable(a.config.Name, ctx.Err())
	}

	return result, nil
}

func (a *PaginatedAPIAdapter) pageURL(term string, page int) string {
	query := url.Values{}
	query.Set("search", term)
	query.Set("per_page", strconv.Itoa(a.config.Settings.PerPage))
	query.Set("page", strconv.Itoa(page))
	if !a.scope.Cutoff.IsZero() {
		query.Set("after", a.scope.Cutoff.UTC().Format("2006-01-02T15:04:05"))
	}
	query.Set("_fields", wpFields)

	sep := "?"
	if strings.Contains(a.config.URL, "?") {
		sep = "&"
	}
	return a.config.URL + sep + query.Encode()
}

func (a *PaginatedAPIAdapter) normalizePost(row json.RawMessage) (RawArticle, int64, bool) {
	var post wpPost
	if err := json.Unmarshal(row, &post); err != nil || post.ID == nil {
		return RawArticle{}, 0, false
	}

	title := StripMarkup(post.Title.Rendered)
	link, ok := absoluteLink(post.Link)
	if title == "" || !ok {
		return RawArticle{}, 0, false
	}

	content := StripMarkup(post.Content.Rendered)
	excerpt := StripMarkup(post.Excerpt.Rendered)

	return RawArticle{
		Title:       title,
		URL:         link,
		Source:      a.config.Source,
		PublishedAt: parseTime(post.DateGMT),
		Summary:     cmp.Or(excerpt, truncateRunes(content, wpSummaryChars)),
		Body:        content,
		SourceType:  SourceTypePaginatedArchive,
	}, *post.ID, true
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
