package overrides

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/i79-incidents/app/incident"
	"github.com/lysyi3m/i79-incidents/app/source"
)

func ptr[T any](v T) *T {
	return &v
}

func baseIncidents() []incident.Incident {
	a := incident.Incident{
		ID:                  incident.ID("https://wboy.com/a", "I-79 crash near Fairmont"),
		Title:               "I-79 crash near Fairmont",
		URL:                 "https://wboy.com/a",
		Source:              "wboy.com",
		SuspectedFatalities: 1,
		SourceType:          source.SourceTypeFeed,
		VerificationStatus:  incident.StatusUnverified,
	}
	b := incident.Incident{
		ID:                 incident.ID("https://wdtv.com/b", "I-79 wreck"),
		Title:              "I-79 wreck",
		URL:                "https://wdtv.com/b",
		Source:             "wdtv.com",
		SourceType:         source.SourceTypeSitemapArchive,
		VerificationStatus: incident.StatusUnverified,
	}
	return []incident.Incident{a, b}
}

func TestApplyPatches(t *testing.T) {
	base := baseIncidents()
	target := base[0].ID

	doc := &Document{IncidentOverrides: map[string]Patch{
		target: {
			VerifiedFatalities: Nullable[int]{Set: true, Value: ptr(2)},
			VerificationStatus: ptr(incident.StatusVerified),
			Notes:              ptr("Confirmed"),
			Lat:                Nullable[float64]{Set: true, Value: ptr(39.5)},
			Lon:                Nullable[float64]{Set: true, Value: ptr(-80.1)},
		},
	}}

	out, warnings := Apply(base, doc)
	assert.Empty(t, warnings)
	require.Len(t, out, 2)

	var patched incident.Incident
	for _, inc := range out {
		if inc.ID == target {
			patched = inc
		}
	}
	assert.Equal(t, 2, patched.EffectiveFatalities())
	assert.Equal(t, 1, patched.SuspectedFatalities)
	assert.Equal(t, incident.StatusVerified, patched.VerificationStatus)
	assert.Equal(t, "Confirmed", patched.Notes)
	assert.Equal(t, 39.5, *patched.Lat)

	// base is untouched
	assert.Nil(t, base[0].VerifiedFatalities)
	assert.Equal(t, "", base[0].Notes)
}

func TestApplyClearsVerifiedFatalities(t *testing.T) {
	base := baseIncidents()
	base[0].VerifiedFatalities = ptr(3)

	doc := &Document{IncidentOverrides: map[string]Patch{
		base[0].ID: {VerifiedFatalities: Nullable[int]{Set: true}},
	}}

	out, _ := Apply(base, doc)
	for _, inc := range out {
		assert.Nil(t, inc.VerifiedFatalities)
	}
	assert.Equal(t, 3, *base[0].VerifiedFatalities)
}

func TestApplyClearsCoordinates(t *testing.T) {
	base := baseIncidents()
	base[0].Lat, base[0].Lon = ptr(39.48), ptr(-80.14)

	doc, err := Parse([]byte(`{"incident_overrides": {"` + base[0].ID + `": {"lat": null, "lon": null}}}`))
	require.NoError(t, err)

	out, warnings := Apply(base, doc)
	assert.Empty(t, warnings)
	for _, inc := range out {
		if inc.ID == base[0].ID {
			assert.Nil(t, inc.Lat)
			assert.Nil(t, inc.Lon)
		}
	}
	assert.Equal(t, 39.48, *base[0].Lat)
}

func TestApplyUnknownIDWarns(t *testing.T) {
	base := baseIncidents()
	doc := &Document{IncidentOverrides: map[string]Patch{
		"ffffffffffff": {Notes: ptr("orphan")},
	}}

	out, warnings := Apply(base, doc)
	require.Len(t, warnings, 1)
	assert.Equal(t, "ffffffffffff", warnings[0].ID)
	assert.Contains(t, warnings[0].String(), "ffffffffffff")
	assert.Len(t, out, 2)
	for _, inc := range out {
		assert.Empty(t, inc.Notes)
	}
}

func TestApplyManualIncidents(t *testing.T) {
	published := time.Date(2021, 7, 4, 18, 0, 0, 0, time.UTC)
	doc := &Document{ManualIncidents: []Manual{
		{
			Title:               "Fatal crash on I-79 in Harrison County",
			PublishedAt:         incident.Timestamp{Time: published},
			SuspectedFatalities: 1,
		},
		{
			Title:              "Curated wreck",
			URL:                "https://example.com/curated",
			Source:             "state police",
			LocationText:       ptr("Mile marker 120"),
			Lat:                ptr(39.4),
			Lon:                ptr(-80.2),
			VerificationStatus: incident.StatusUnverified,
		},
	}}

	out, _ := Apply(nil, doc)
	require.Len(t, out, 2)

	byTitle := map[string]incident.Incident{}
	for _, inc := range out {
		byTitle[inc.Title] = inc
	}

	first := byTitle["Fatal crash on I-79 in Harrison County"]
	assert.Equal(t, incident.ID("manual://local", "Fatal crash on I-79 in Harrison County"), first.ID)
	assert.Equal(t, "manual://local", first.URL)
	assert.Equal(t, "manual", first.Source)
	assert.Equal(t, source.SourceTypeManual, first.SourceType)
	assert.Equal(t, incident.StatusVerified, first.VerificationStatus)
	assert.Equal(t, "Harrison County", first.LocationText)
	require.NotNil(t, first.Lat)
	assert.True(t, first.PublishedAt.Equal(published))

	second := byTitle["Curated wreck"]
	assert.Equal(t, "Mile marker 120", second.LocationText)
	assert.Equal(t, 39.4, *second.Lat)
	assert.Equal(t, "state police", second.Source)
	assert.Equal(t, incident.StatusUnverified, second.VerificationStatus)
}

func TestApplyManualRespectsPriority(t *testing.T) {
	title := "I-79 crash"
	url := "https://wv511.org/#i79-abc"
	official := incident.Incident{
		ID:                 incident.ID(url, title),
		Title:              title,
		URL:                url,
		Source:             "wv511.org",
		SourceType:         source.SourceTypeOfficial,
		VerificationStatus: incident.StatusOfficial,
	}
	feed := official
	feed.Source = "wboy.com"
	feed.SourceType = source.SourceTypeFeed
	feed.VerificationStatus = incident.StatusUnverified

	doc := &Document{ManualIncidents: []Manual{{Title: title, URL: url, Notes: "curated"}}}

	out, _ := Apply([]incident.Incident{official}, doc)
	require.Len(t, out, 1)
	assert.Equal(t, source.SourceTypeOfficial, out[0].SourceType)
	assert.Equal(t, "curated", out[0].Notes)

	out, _ = Apply([]incident.Incident{feed}, doc)
	require.Len(t, out, 1)
	assert.Equal(t, source.SourceTypeManual, out[0].SourceType)
	assert.Equal(t, "manual", out[0].Source)
}

func TestApplyPatchesManualIncident(t *testing.T) {
	title := "Curated crash on I-79"
	id := incident.ID("manual://local", title)
	doc := &Document{
		ManualIncidents:   []Manual{{Title: title}},
		IncidentOverrides: map[string]Patch{id: {SuspectedFatalities: ptr(3)}},
	}

	out, warnings := Apply(nil, doc)
	assert.Empty(t, warnings)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].SuspectedFatalities)
}

func TestApplyIsIdempotent(t *testing.T) {
	base := baseIncidents()
	doc := &Document{
		IncidentOverrides: map[string]Patch{
			base[0].ID: {
				Source:             ptr("zz-renamed"),
				Summary:            ptr(""),
				VerifiedFatalities: Nullable[int]{Set: true, Value: ptr(1)},
			},
			base[1].ID:     {ConstructionRelated: ptr(true)},
			"ffffffffffff": {Notes: ptr("orphan")},
		},
		ManualIncidents: []Manual{
			{Title: "I-79 crash near Fairmont", URL: "https://wboy.com/a", Summary: "manual summary"},
			{Title: "Manual only", Notes: "n"},
		},
	}

	once, _ := Apply(base, doc)
	twice, _ := Apply(once, doc)

	assert.Equal(t, once, twice)
	assert.Len(t, once, 3)
}

func TestApplyNilDocument(t *testing.T) {
	out, warnings := Apply(baseIncidents(), nil)
	assert.Len(t, out, 2)
	assert.Empty(t, warnings)
	assert.Less(t, out[0].ID, out[1].ID)
}
