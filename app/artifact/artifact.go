package artifact

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/lysyi3m/i79-incidents/app/incident"
	"github.com/lysyi3m/i79-incidents/app/source"
)

type Summary struct {
	GeneratedAt              incident.Timestamp `json:"generated_at"`
	IncidentCount            int                `json:"incident_count"`
	SuspectedFatalities      int                `json:"suspected_fatalities"`
	ConstructionRelatedCount int                `json:"construction_related_count"`
	OfficialSourceCount      int                `json:"official_source_count"`
	VerifiedCount            int                `json:"verified_count"`
}

// Document is the published artifact.
type Document struct {
	Summary   Summary             `json:"summary"`
	Incidents []incident.Incident `json:"incidents"`
}

// Build orders the incidents newest first (undated last, then by id) and
// computes the summary.
func Build(incidents []incident.Incident, now time.Time) Document {
	ordered := slices.Clone(incidents)
	if ordered == nil {
		ordered = []incident.Incident{}
	}
	slices.SortStableFunc(ordered, compareIncidents)

	summary := Summary{
		GeneratedAt:   incident.Timestamp{Time: now.UTC()},
		IncidentCount: len(ordered),
	}
	for _, inc := range ordered {
		summary.SuspectedFatalities += inc.EffectiveFatalities()
		if inc.ConstructionRelated {
			summary.ConstructionRelatedCount++
		}
		if inc.SourceType == source.SourceTypeOfficial {
			summary.OfficialSourceCount++
		}
		if inc.Verified() {
			summary.VerifiedCount++
		}
	}

	return Document{Summary: summary, Incidents: ordered}
}

func compareIncidents(a, b incident.Incident) int {
	aDated, bDated := !a.PublishedAt.IsZero(), !b.PublishedAt.IsZero()
	switch {
	case aDated && !bDated:
		return -1
	case !aDated && bDated:
		return 1
	}
	return cmp.Or(
		b.PublishedAt.Compare(a.PublishedAt.Time),
		cmp.Compare(a.ID, b.ID),
	)
}

func Marshal(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact: %w", err)
	}
	return append(data, '\n'), nil
}

// Write replaces path atomically: the document goes to a temp file in the
// same directory, is synced, then renamed over the target.
func Write(path string, doc Document) error {
	return WriteAll([]string{path}, doc)
}

// WriteAll publishes the same bytes to every path. Every temp file is
// written and synced before any target is replaced, so a failure while
// staging leaves all published copies untouched.
func WriteAll(paths []string, doc Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}

	staged := make([]string, 0, len(paths))
	defer func() {
		for _, tmpName := range staged {
			os.Remove(tmpName)
		}
	}()

	for _, path := range paths {
		tmpName, err := stage(path, data)
		if err != nil {
			return err
		}
		staged = append(staged, tmpName)
	}

	for i, path := range paths {
		if err := os.Rename(staged[i], path); err != nil {
			return fmt.Errorf("failed to replace %s: %w", path, err)
		}
	}

	return nil
}

// stage writes data to a synced temp file next to path and returns its name.
func stage(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(format string, err error) (string, error) {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf(format, tmpName, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("failed to write %s: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("failed to sync %s: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail("failed to chmod %s: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	return tmpName, nil
}

// Read loads a published artifact.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	doc, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse artifact: %w", err)
	}
	return &doc, nil
}
