package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/gofeed"
)

type FeedAdapter struct {
	config  *Config
	fetcher *Fetcher
	parser  *gofeed.Parser
}

func NewFeedAdapter(c *Config, fetcher *Fetcher) *FeedAdapter {
	return &FeedAdapter{
		config:  c,
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
	}
}

func (a *FeedAdapter) Fetch(ctx context.Context) (Result, error) {
	result := Result{Source: a.config.Name}

	data, err := a.fetcher.Get(ctx, a.config.URL)
	result.Requests = a.fetcher.Requests()
	if err != nil {
		return result, unavailable(a.config.Name, fmt.Errorf("failed to fetch feed: %w", err))
	}

	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return result, unavailable(a.config.Name, fmt.Errorf("failed to parse feed: %w", err))
	}

	for _, item := range feed.Items {
		article, ok := a.normalizeItem(item)
		if !ok {
			result.Skipped++
			continue
		}
		result.Articles = append(result.Articles, article)
	}

	slog.Debug("Feed parsed", "source", a.config.Name, "items", len(feed.Items), "skipped", result.Skipped)

	return result, nil
}

func (a *FeedAdapter) normalizeItem(item *gofeed.Item) (RawArticle, bool) {
	if item == nil {
		return RawArticle{}, false
	}

	link, ok := absoluteLink(item.Link)
	if !ok {
		return RawArticle{}, false
	}

	title := StripMarkup(item.Title)
	if title == "" {
		return RawArticle{}, false
	}

	article := RawArticle{
		Title:      title,
		URL:        link,
		Source:     cmp.Or(hostLabel(link), a.config.Source),
		Summary:    StripMarkup(item.Description),
		Body:       StripMarkup(item.Content),
		SourceType: SourceTypeFeed,
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		article.PublishedAt = &published
	} else if item.UpdatedParsed != nil {
		updated := item.UpdatedParsed.UTC()
		article.PublishedAt = &updated
	}

	return article, true
}
