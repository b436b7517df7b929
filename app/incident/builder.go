package incident

import (
	"strings"

	"github.com/lysyi3m/i79-incidents/app/source"
)

// Builder turns kept raw articles into incidents.
type Builder struct {
	extractor *Extractor
}

func NewBuilder(extractor *Extractor) *Builder {
	return &Builder{extractor: extractor}
}

func (b *Builder) Run(article source.RawArticle) Incident {
	full := joinText(article.Title, article.Summary, article.Body, article.Notes)
	fatalityText := joinText(article.Title, article.Summary, truncate(article.Body, fatalityBodyChars), article.Notes)

	location := b.extractor.Location(full)
	status := StatusUnverified
	if article.SourceType == source.SourceTypeOfficial {
		status = StatusOfficial
		if countyLoc, ok := b.extractor.CountyLocation(article.County); ok {
			location = countyLoc
			location.Label = strings.TrimSpace(article.County)
		}
	}

	return Incident{
		ID:                  ID(article.URL, article.Title),
		Title:               article.Title,
		URL:                 article.URL,
		Source:              article.Source,
		PublishedAt:         NewTimestamp(article.PublishedAt),
		Summary:             article.Summary,
		Body:                article.Body,
		LocationText:        location.Label,
		Lat:                 location.Lat,
		Lon:                 location.Lon,
		ConstructionRelated: b.extractor.ConstructionRelated(full),
		SuspectedFatalities: b.extractor.Fatalities(fatalityText),
		SourceType:          article.SourceType,
		VerificationStatus:  status,
		Notes:               article.Notes,
	}
}

// RunAll builds every article, keeping input order.
func (b *Builder) RunAll(articles []source.RawArticle) []Incident {
	out := make([]Incident, 0, len(articles))
	for _, article := range articles {
		out = append(out, b.Run(article))
	}
	return out
}

func joinText(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, " ")
}
