package source

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"
	"github.com/go-shiori/go-readability"
)

const (
	maxSitemapDepth    = 3
	maxEmptySitemaps   = 3
	defaultSitemapStep = 100
)

// SitemapAdapter discovers article URLs through a sitemap index and an
// optional offset-paged sitemap, then reads each article page's metadata.
type SitemapAdapter struct {
	config  *Config
	fetcher *Fetcher
	scope   Scope
}

type sitemapEntry struct {
	loc     string
	lastmod string
}

func NewSitemapAdapter(c *Config, fetcher *Fetcher, scope Scope) *SitemapAdapter {
	return &SitemapAdapter{config: c, fetcher: fetcher, scope: scope}
}

func (a *SitemapAdapter) Fetch(ctx context.Context) (Result, error) {
	result := Result{Source: a.config.Name}
	seen := make(map[string]bool)
	var entries []sitemapEntry

	collect := func(found []sitemapEntry) {
		for _, e := range found {
			if e.loc == "" || seen[e.loc] {
				continue
			}
			seen[e.loc] = true
			entries = append(entries, e)
		}
	}

	indexErr := a.walk(ctx, a.config.URL, 0, collect)
	if indexErr != nil {
		slog.Warn("Sitemap index unavailable", "source", a.config.Name, "error", indexErr)
	}

	pagedOK := false
	if a.config.Settings.PagedURL != "" {
		pagedOK = a.walkPaged(ctx, collect)
	}

	if indexErr != nil && !pagedOK {
		result.Requests = a.fetcher.Requests()
		return result, unavailable(a.config.Name, indexErr)
	}

	for _, entry := range entries {
		if !a.candidate(entry) {
			continue
		}

		article, err := a.readArticle(ctx, entry)
		if errors.Is(err, ErrBudgetExhausted) || ctx.Err() != nil {
			slog.Debug("Sitemap crawl stopped", "source", a.config.Name, "error", cmp.Or(err, ctx.Err()))
			break
		}
		if err != nil {
			slog.Debug("Skipping article", "source", a.config.Name, "url", entry.loc, "error", err)
			result.Skipped++
			continue
		}
		result.Articles = append(result.Articles, article)
	}

	result.Requests = a.fetcher.Requests()
	return result, nil
}

// walk reads a sitemap or sitemap index. Sub-sitemaps whose lastmod falls
// before the window are not visited.
func (a *SitemapAdapter) walk(ctx context.Context, loc string, depth int, collect func([]sitemapEntry)) error {
	doc, err := a.fetchXML(ctx, loc)
	if err != nil {
		return err
	}

	for _, child := range entriesOf(doc, "sitemap") {
		if depth+1 >= maxSitemapDepth || beforeCutoff(parseTime(child.lastmod), a.scope.Cutoff) {
			continue
		}
		if err := a.walk(ctx, child.loc, depth+1, collect); err != nil {
			if errors.Is(err, ErrBudgetExhausted) || ctx.Err() != nil {
				return nil
			}
			slog.Debug("Sub-sitemap unavailable", "source", a.config.Name, "url", child.loc, "error", err)
		}
	}

	collect(entriesOf(doc, "url"))
	return nil
}

// walkPaged follows paged_url&from=N until max_pages or three consecutive
// empty or broken pages. It reports whether any page yielded entries.
func (a *SitemapAdapter) walkPaged(ctx context.Context, collect func([]sitemapEntry)) bool {
	step := cmp.Or(a.config.Settings.PerPage, defaultSitemapStep)
	empty := 0
	ok := false

	for page := 0; page < a.config.Settings.MaxPages && empty < maxEmptySitemaps; page++ {
		pageURL := a.config.Settings.PagedURL
		if page > 0 {
			pageURL = withParam(pageURL, "from", strconv.Itoa(page*step))
		}

		doc, err := a.fetchXML(ctx, pageURL)
		if errors.Is(err, ErrBudgetExhausted) || ctx.Err() != nil {
			break
		}
		if err != nil {
			empty++
			continue
		}

		rows := entriesOf(doc, "url")
		if len(rows) == 0 {
			empty++
			continue
		}

		empty = 0
		ok = true
		collect(rows)
	}

	return ok
}

func (a *SitemapAdapter) fetchXML(ctx context.Context, loc string) (*xmlquery.Node, error) {
	data, err := a.fetcher.Get(ctx, loc)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap %s: %w", loc, err)
	}
	return doc, nil
}

func (a *SitemapAdapter) candidate(entry sitemapEntry) bool {
	if beforeCutoff(parseTime(entry.lastmod), a.scope.Cutoff) {
		return false
	}

	hints := a.config.Settings.URLHints
	if len(hints) == 0 {
		return true
	}

	lowered := strings.ToLower(entry.loc)
	for _, hint := range hints {
		if strings.Contains(lowered, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

func (a *SitemapAdapter) readArticle(ctx context.Context, entry sitemapEntry) (RawArticle, error) {
	link, ok := absoluteLink(entry.loc)
	if !ok {
		return RawArticle{}, fmt.Errorf("invalid article URL %q", entry.loc)
	}

	data, err := a.fetcher.Get(ctx, link)
	if err != nil {
		return RawArticle{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return RawArticle{}, fmt.Errorf("failed to parse article page: %w", err)
	}

	var body, extractedTitle string
	pageURL, _ := url.Parse(link)
	if extracted, err := readability.FromReader(bytes.NewReader(data), pageURL); err == nil {
		body = StripMarkup(extracted.Content)
		extractedTitle = StripMarkup(extracted.Title)
	}

	title := cmp.Or(
		StripMarkup(metaContent(doc, "og:title")),
		StripMarkup(doc.Find("title").First().Text()),
		extractedTitle,
	)
	if title == "" {
		return RawArticle{}, fmt.Errorf("article has no title")
	}

	summary := StripMarkup(metaContent(doc, "og:description"))
	published := parseTime(cmp.Or(metaContent(doc, "article:published_time"), entry.lastmod))

	return RawArticle{
		Title:       title,
		URL:         link,
		Source:      a.config.Source,
		PublishedAt: published,
		Summary:     summary,
		Body:        body,
		SourceType:  SourceTypeSitemapArchive,
	}, nil
}

func entriesOf(doc *xmlquery.Node, element string) []sitemapEntry {
	var entries []sitemapEntry
	for _, node := range xmlquery.Find(doc, "//*[local-name()='"+element+"']") {
		entries = append(entries, sitemapEntry{
			loc:     childText(node, "loc"),
			lastmod: childText(node, "lastmod"),
		})
	}
	return entries
}

func childText(node *xmlquery.Node, name string) string {
	child := xmlquery.FindOne(node, "./*[local-name()='"+name+"']")
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}

func metaContent(doc *goquery.Document, key string) string {
	for _, attr := range []string{"property", "name"} {
		if content, ok := doc.Find(`meta[` + attr + `="` + key + `"]`).First().Attr("content"); ok {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

func withParam(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}
