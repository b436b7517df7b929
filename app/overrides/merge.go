package overrides

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/lysyi3m/i79-incidents/app/incident"
	"github.com/lysyi3m/i79-incidents/app/source"
)

const (
	defaultManualURL    = "manual://local"
	defaultManualSource = "manual"
)

// Merger applies an override document to a deduplicated incident set.
type Merger struct {
	extractor *incident.Extractor
}

func NewMerger(extractor *incident.Extractor) *Merger {
	return &Merger{extractor: extractor}
}

// Apply merges with the default lexicon.
func Apply(base []incident.Incident, doc *Document) ([]incident.Incident, []Warning) {
	return NewMerger(incident.NewExtractor(incident.DefaultLexicon())).Apply(base, doc)
}

// Apply inserts manual incidents, then patches by id. base is not modified
// and the result is sorted by id. Applying the same document twice yields
// the same set.
func (m *Merger) Apply(base []incident.Incident, doc *Document) ([]incident.Incident, []Warning) {
	byID := make(map[string]incident.Incident, len(base))
	for _, inc := range base {
		if existing, ok := byID[inc.ID]; ok {
			byID[inc.ID] = incident.Resolve(existing, inc)
			continue
		}
		byID[inc.ID] = inc.Clone()
	}

	if doc == nil {
		doc = &Document{}
	}

	for _, raw := range doc.ManualIncidents {
		manual := m.build(raw)
		if existing, ok := byID[manual.ID]; ok {
			byID[manual.ID] = incident.Resolve(existing, manual)
			continue
		}
		byID[manual.ID] = manual
	}

	var warnings []Warning
	for _, id := range slices.Sorted(maps.Keys(doc.IncidentOverrides)) {
		inc, ok := byID[id]
		if !ok {
			warnings = append(warnings, Warning{ID: id})
			continue
		}
		byID[id] = doc.IncidentOverrides[id].apply(inc)
	}

	out := make([]incident.Incident, 0, len(byID))
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		out = append(out, byID[id])
	}
	return out, warnings
}

func (m *Merger) build(raw Manual) incident.Incident {
	title := strings.TrimSpace(raw.Title)
	url := cmp.Or(strings.TrimSpace(raw.URL), defaultManualURL)

	inc := incident.Incident{
		ID:                  incident.ID(url, title),
		Title:               title,
		URL:                 url,
		Source:              cmp.Or(strings.TrimSpace(raw.Source), defaultManualSource),
		PublishedAt:         raw.PublishedAt,
		Summary:             raw.Summary,
		ConstructionRelated: bool(raw.ConstructionRelated),
		SuspectedFatalities: raw.SuspectedFatalities,
		SourceType:          source.SourceTypeManual,
		VerificationStatus:  cmp.Or(raw.VerificationStatus, incident.StatusVerified),
		VerifiedFatalities:  clone(raw.VerifiedFatalities),
		Notes:               raw.Notes,
	}

	location := m.extractor.Location(strings.Join([]string{title, raw.Summary}, " "))
	inc.LocationText = location.Label
	inc.Lat, inc.Lon = location.Lat, location.Lon
	if raw.LocationText != nil {
		inc.LocationText = *raw.LocationText
	}
	if raw.Lat != nil && raw.Lon != nil {
		inc.Lat, inc.Lon = clone(raw.Lat), clone(raw.Lon)
	}

	return inc
}

func (p Patch) apply(inc incident.Incident) incident.Incident {
	out := inc.Clone()

	if p.Summary != nil {
		out.Summary = *p.Summary
	}
	if p.Source != nil {
		out.Source = *p.Source
	}
	if p.PublishedAt != nil {
		out.PublishedAt = *p.PublishedAt
	}
	if p.LocationText != nil {
		out.LocationText = *p.LocationText
	}
	if p.Lat.Set {
		out.Lat, out.Lon = clone(p.Lat.Value), clone(p.Lon.Value)
	}
	if p.ConstructionRelated != nil {
		out.ConstructionRelated = *p.ConstructionRelated
	}
	if p.SuspectedFatalities != nil {
		out.SuspectedFatalities = *p.SuspectedFatalities
	}
	if p.VerifiedFatalities.Set {
		out.VerifiedFatalities = clone(p.VerifiedFatalities.Value)
	}
	if p.VerificationStatus != nil {
		out.VerificationStatus = *p.VerificationStatus
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}

	return out
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
