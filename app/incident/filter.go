package incident

import (
	"slices"
	"strings"

	"github.com/lysyi3m/i79-incidents/app/source"
)

const filterBodyChars = 1000

const (
	ReasonNoCorridor    = "no corridor mention"
	ReasonNoIncident    = "no incident keyword"
	ReasonOutsideRegion = "outside target counties"
	ReasonExcludedTitle = "excluded title"
)

// Stage is one relevance predicate. Pass receives the article and its
// lower-cased combined text.
type Stage struct {
	Reason string
	Pass   func(article source.RawArticle, text string) bool
}

type Filter struct {
	stages []Stage
}

func NewFilter(lex Lexicon) *Filter {
	return &Filter{stages: FilterStages(lex)}
}

// FilterStages returns the predicates in evaluation order.
func FilterStages(lex Lexicon) []Stage {
	counties := lex.CountyNames()
	regional := slices.Concat(counties, lex.CountyAliases)
	for _, place := range lex.Places {
		regional = append(regional, place.Name)
	}

	return []Stage{
		{
			Reason: ReasonNoCorridor,
			Pass: func(_ source.RawArticle, text string) bool {
				return lex.Corridor.MatchString(text)
			},
		},
		{
			Reason: ReasonNoIncident,
			Pass: func(_ source.RawArticle, text string) bool {
				return containsAny(text, lex.IncidentTerms)
			},
		},
		{
			Reason: ReasonOutsideRegion,
			Pass: func(article source.RawArticle, text string) bool {
				if article.SourceType == source.SourceTypeOfficial {
					return slices.Contains(counties, strings.ToLower(strings.TrimSpace(article.County)))
				}
				return containsAny(text, regional)
			},
		},
		{
			Reason: ReasonExcludedTitle,
			Pass: func(article source.RawArticle, _ string) bool {
				return !containsAny(strings.ToLower(article.Title), lex.ExcludedTitles)
			},
		},
	}
}

// Evaluate reports whether the article is kept and, if not, the reason of
// the first failing stage.
func (f *Filter) Evaluate(article source.RawArticle) (bool, string) {
	text := strings.ToLower(strings.Join([]string{
		article.Title,
		article.Summary,
		truncate(article.Body, filterBodyChars),
	}, " "))

	for _, stage := range f.stages {
		if !stage.Pass(article, text) {
			return false, stage.Reason
		}
	}
	return true, ""
}

// Run returns the kept articles in input order together with rejection
// counts per reason.
func (f *Filter) Run(articles []source.RawArticle) ([]source.RawArticle, map[string]int) {
	kept := make([]source.RawArticle, 0, len(articles))
	rejected := make(map[string]int)

	for _, article := range articles {
		ok, reason := f.Evaluate(article)
		if !ok {
			rejected[reason]++
			continue
		}
		kept = append(kept, article)
	}

	return kept, rejected
}
