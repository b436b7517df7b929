package source

import (
	"errors"
	"fmt"
	"time"
)

type SourceType string

const (
	SourceTypeFeed             SourceType = "feed"
	SourceTypePaginatedArchive SourceType = "paginated-archive"
	SourceTypeSitemapArchive   SourceType = "sitemap-archive"
	SourceTypeOfficial         SourceType = "official"
	SourceTypeManual           SourceType = "manual"
)

// Priority ranks source types for duplicate resolution; higher wins.
func (t SourceType) Priority() int {
	switch t {
	case SourceTypeOfficial:
		return 4
	case SourceTypeManual:
		return 3
	case SourceTypePaginatedArchive, SourceTypeSitemapArchive:
		return 2
	case SourceTypeFeed:
		return 1
	default:
		return 0
	}
}

func (t SourceType) Valid() bool {
	return t.Priority() > 0
}

// RawArticle is one unclassified record produced by an adapter.
type RawArticle struct {
	Title       string
	URL         string
	Source      string
	PublishedAt *time.Time
	Summary     string
	Body        string
	SourceType  SourceType

	County string // explicit county field, official listings only
	Notes  string
}

// Result is what one adapter run yields. Skipped counts malformed items.
type Result struct {
	Source   string
	Articles []RawArticle
	Skipped  int
	Requests int
}

var ErrSourceUnavailable = errors.New("source unavailable")

// SourceUnavailableError reports that an entire endpoint could not be
// reached or parsed.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

func unavailable(source string, err error) error {
	return &SourceUnavailableError{Source: source, Err: err}
}
