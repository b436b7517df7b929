package incident

import (
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Place is a gazetteer entry with an approximate centroid.
type Place struct {
	Name string
	Lat  float64
	Lon  float64
}

// Lexicon holds the fixed term tables used by the filter and extractors.
// DefaultLexicon hands out a fresh copy; nothing in this package mutates one.
type Lexicon struct {
	Corridor          *regexp.Regexp
	IncidentTerms     []string
	Counties          []Place
	CountyAliases     []string
	Places            []Place
	ExcludedTitles    []string
	ConstructionTerms []string
	FatalClues        []string
	SpelledNumbers    map[string]int
}

var corridorPattern = regexp.MustCompile(`(?i)\b(?:i[- ]?79|interstate[- ]79)\b`)

func DefaultLexicon() Lexicon {
	return Lexicon{
		Corridor: corridorPattern,
		IncidentTerms: []string{
			"accident",
			"crash",
			"wreck",
			"collision",
			"vehicle fire",
			"rolled over",
			"rollover",
			"tractor trailer",
			"tractor-trailer",
			"traffic backup",
			"pileup",
			"pile-up",
		},
		Counties: []Place{
			{Name: "monongalia county", Lat: 39.6525, Lon: -80.0041},
			{Name: "marion county", Lat: 39.4568, Lon: -80.1542},
			{Name: "harrison county", Lat: 39.3032, Lon: -80.3781},
		},
		CountyAliases: []string{"mon county", "marion co", "harrison co"},
		Places: []Place{
			{Name: "morgantown", Lat: 39.6295, Lon: -79.9559},
			{Name: "star city", Lat: 39.6579, Lon: -79.9862},
			{Name: "fairmont", Lat: 39.4851, Lon: -80.1426},
			{Name: "white hall", Lat: 39.4443, Lon: -80.1723},
			{Name: "bridgeport", Lat: 39.2865, Lon: -80.2562},
			{Name: "clarksburg", Lat: 39.2806, Lon: -80.3445},
			{Name: "weston", Lat: 39.0384, Lon: -80.4673},
			{Name: "stonewood", Lat: 39.2462, Lon: -80.3009},
			{Name: "lost creek", Lat: 39.1615, Lon: -80.3731},
		},
		ExcludedTitles: []string{
			"discusses what might cause",
			"what might cause accidents",
			"safety tips",
			"how to avoid",
			"why crashes happen",
			"opinion:",
			"editorial:",
		},
		ConstructionTerms: []string{
			"construction",
			"work zone",
			"bridge work",
			"bridge deck repairs",
			"paving",
			"lane closure",
			"detour",
			"road work",
			"roadwork",
			"maintenance",
		},
		FatalClues: []string{
			"fatal",
			"fatality",
			"fatalities",
			"fatally",
			"killed",
			"died",
			"dead",
			"deceased",
			"medical examiner",
			"pronounced dead",
		},
		SpelledNumbers: map[string]int{
			"one":   1,
			"two":   2,
			"three": 3,
			"four":  4,
			"five":  5,
			"six":   6,
			"seven": 7,
			"eight": 8,
			"nine":  9,
			"ten":   10,
		},
	}
}

// CountyNames lists the target county names in lexicon order.
func (l Lexicon) CountyNames() []string {
	names := make([]string, 0, len(l.Counties))
	for _, county := range l.Counties {
		names = append(names, county.Name)
	}
	return names
}

// spelledAlternation returns the spelled-number keys as a sorted regexp
// alternation.
func (l Lexicon) spelledAlternation() string {
	words := slices.Sorted(maps.Keys(l.SpelledNumbers))
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, "|")
}
