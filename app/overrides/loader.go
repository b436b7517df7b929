package overrides

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/lysyi3m/i79-incidents/app/incident"
	"github.com/lysyi3m/i79-incidents/app/source"
)

// Load reads and validates the override document at path. A missing file
// is an empty document.
func Load(path string) (*Document, error) {
	if path == "" {
		return &Document{}, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrFatalConfig, path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes an override document strictly: unknown keys, wrong types and
// out-of-range values are all fatal.
func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %w", ErrFatalConfig, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrFatalConfig)
	}

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatalConfig, err)
	}
	return doc, nil
}

func (d *Document) Validate() error {
	for id, patch := range d.IncidentOverrides {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("incident_overrides has an empty id")
		}
		if err := patch.validate(); err != nil {
			return fmt.Errorf("incident_overrides[%s]: %w", id, err)
		}
	}

	for i, m := range d.ManualIncidents {
		if err := m.validate(); err != nil {
			return fmt.Errorf("manual_incidents[%d]: %w", i, err)
		}
	}

	return nil
}

func (p Patch) validate() error {
	if p.Lat.Set != p.Lon.Set || (p.Lat.Value == nil) != (p.Lon.Value == nil) {
		return fmt.Errorf("lat and lon must be set or cleared together")
	}
	if err := validateCoordinates(p.Lat.Value, p.Lon.Value); err != nil {
		return err
	}
	if p.SuspectedFatalities != nil {
		if err := validateSuspected(*p.SuspectedFatalities); err != nil {
			return err
		}
	}
	if p.VerifiedFatalities.Value != nil && *p.VerifiedFatalities.Value < 0 {
		return fmt.Errorf("verified_fatalities must be non-negative")
	}
	if p.VerificationStatus != nil && !p.VerificationStatus.Valid() {
		return fmt.Errorf("invalid verification_status %q", *p.VerificationStatus)
	}
	return nil
}

func (m Manual) validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if m.SourceType != "" && m.SourceType != string(source.SourceTypeManual) {
		return fmt.Errorf("source_type must be %q, got %q", source.SourceTypeManual, m.SourceType)
	}
	if (m.Lat == nil) != (m.Lon == nil) {
		return fmt.Errorf("lat and lon must be set together")
	}
	if err := validateCoordinates(m.Lat, m.Lon); err != nil {
		return err
	}
	if err := validateSuspected(m.SuspectedFatalities); err != nil {
		return err
	}
	if m.VerifiedFatalities != nil && *m.VerifiedFatalities < 0 {
		return fmt.Errorf("verified_fatalities must be non-negative")
	}
	if m.VerificationStatus != "" && !m.VerificationStatus.Valid() {
		return fmt.Errorf("invalid verification_status %q", m.VerificationStatus)
	}
	return nil
}

func validateCoordinates(lat, lon *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("lat %v out of range", *lat)
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return fmt.Errorf("lon %v out of range", *lon)
	}
	return nil
}

func validateSuspected(n int) error {
	if n < 0 || n > incident.MaxFatalities {
		return fmt.Errorf("suspected_fatalities must be between 0 and %d, got %d", incident.MaxFatalities, n)
	}
	return nil
}
