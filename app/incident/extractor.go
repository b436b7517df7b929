package incident

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	UnspecifiedLocation = "Unspecified stretch"
	MaxFatalities       = 10
	fatalityBodyChars   = 350
)

// Location is the outcome of location inference. Lat and Lon are both nil
// when nothing in the text matched.
type Location struct {
	Label string
	Lat   *float64
	Lon   *float64
}

// FatalityRule is one stage of the fatality cascade. Apply reports whether
// the rule fired and, if so, the estimate. Rules expect lower-cased text.
type FatalityRule struct {
	Name  string
	Apply func(text string) (int, bool)
}

type placePattern struct {
	place   Place
	pattern *regexp.Regexp
}

type Extractor struct {
	lex      Lexicon
	rules    []FatalityRule
	counties []placePattern
	places   []placePattern
}

func NewExtractor(lex Lexicon) *Extractor {
	return &Extractor{
		lex:      lex,
		rules:    FatalityRules(lex),
		counties: compilePlaces(lex.Counties),
		places:   compilePlaces(lex.Places),
	}
}

// FatalityRules builds the ordered cascade: no clue, numeric count, spelled
// count, then the conservative default of one.
func FatalityRules(lex Lexicon) []FatalityRule {
	clue := regexp.MustCompile(`\b(?:` + quoteAll(lex.FatalClues) + `)\b`)

	numeric := []*regexp.Regexp{
		regexp.MustCompile(`\b(\d+)\s+(?:people|persons?|victims?|others?)\s+(?:(?:were|was|are|have been)\s+)?killed\b`),
		regexp.MustCompile(`\b(\d+)\s+(?:(?:people|persons?)\s+)?(?:(?:are|were)\s+)?dead\b`),
		regexp.MustCompile(`\bkilled\s+(\d+)\b`),
		regexp.MustCompile(`\b(\d+)\s+fatalit(?:y|ies)\b`),
	}

	words := lex.spelledAlternation()
	spelled := []*regexp.Regexp{
		regexp.MustCompile(`\b(` + words + `)\s+(?:(?:people|persons?|victims?|others?)\s+)?(?:(?:were|was|are|is|have been)\s+)?(?:dead|killed)\b`),
		regexp.MustCompile(`\bkilled\s+(` + words + `)\b`),
		regexp.MustCompile(`\b(` + words + `)\s+fatalit(?:y|ies)\b`),
	}

	return []FatalityRule{
		{
			Name: "no-clue",
			Apply: func(text string) (int, bool) {
				return 0, !clue.MatchString(text)
			},
		},
		{
			Name: "numeric",
			Apply: func(text string) (int, bool) {
				for _, pattern := range numeric {
					if n, ok := firstCount(pattern, text, strconv.Atoi); ok {
						return min(n, MaxFatalities), true
					}
				}
				return 0, false
			},
		},
		{
			Name: "spelled",
			Apply: func(text string) (int, bool) {
				lookup := func(word string) (int, error) {
					return lex.SpelledNumbers[word], nil
				}
				for _, pattern := range spelled {
					if n, ok := firstCount(pattern, text, lookup); ok {
						return min(n, MaxFatalities), true
					}
				}
				return 0, false
			},
		},
		{
			Name: "default",
			Apply: func(string) (int, bool) {
				return 1, true
			},
		},
	}
}

// roadPrefixes mark numbers that are route designations rather than counts.
var roadPrefixes = []string{"i-", "i ", "interstate ", "route ", "rt. ", "rt ", "us ", "wv ", "exit ", "mile marker ", "mm "}

func firstCount(pattern *regexp.Regexp, text string, convert func(string) (int, error)) (int, bool) {
	for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		if isRoadNumber(text[:start]) {
			continue
		}
		n, err := convert(text[start:end])
		if err != nil || n <= 0 {
			continue
		}
		return n, true
	}
	return 0, false
}

func isRoadNumber(before string) bool {
	for _, prefix := range roadPrefixes {
		if strings.HasSuffix(before, prefix) {
			return true
		}
	}
	return false
}

// Fatalities runs the cascade over text; the first rule that fires wins.
func (e *Extractor) Fatalities(text string) int {
	lowered := strings.ToLower(text)
	for _, rule := range e.rules {
		if n, ok := rule.Apply(lowered); ok {
			return n
		}
	}
	return 0
}

// Location prefers the earliest county mention, then the earliest gazetteer
// place, then the unspecified sentinel.
func (e *Extractor) Location(text string) Location {
	lowered := strings.ToLower(text)

	if place, ok := earliest(e.counties, lowered); ok {
		return located(place)
	}
	if place, ok := earliest(e.places, lowered); ok {
		return located(place)
	}

	return Location{Label: UnspecifiedLocation}
}

// CountyLocation resolves an explicit county field against the target set.
func (e *Extractor) CountyLocation(county string) (Location, bool) {
	county = strings.ToLower(strings.TrimSpace(county))
	for _, candidate := range e.lex.Counties {
		if candidate.Name == county {
			return located(candidate), true
		}
	}
	return Location{}, false
}

func (e *Extractor) ConstructionRelated(text string) bool {
	return containsAny(strings.ToLower(text), e.lex.ConstructionTerms)
}

func located(place Place) Location {
	lat, lon := place.Lat, place.Lon
	return Location{
		Label: cases.Title(language.English).String(place.Name),
		Lat:   &lat,
		Lon:   &lon,
	}
}

func compilePlaces(places []Place) []placePattern {
	compiled := make([]placePattern, 0, len(places))
	for _, place := range places {
		compiled = append(compiled, placePattern{
			place:   place,
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(place.Name) + `\b`),
		})
	}
	return compiled
}

func earliest(candidates []placePattern, text string) (Place, bool) {
	best := -1
	var found Place
	for _, candidate := range candidates {
		loc := candidate.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			found = candidate.place
		}
	}
	return found, best >= 0
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func quoteAll(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, regexp.QuoteMeta(term))
	}
	return strings.Join(quoted, "|")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
