package overrides

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lysyi3m/i79-incidents/app/incident"
)

var ErrFatalConfig = errors.New("fatal override configuration")

// Document is the curator-maintained override file.
type Document struct {
	IncidentOverrides map[string]Patch `json:"incident_overrides"`
	ManualIncidents   []Manual         `json:"manual_incidents"`
}

// Patch replaces individual fields of an existing incident. Absent fields
// are left alone.
type Patch struct {
	Summary             *string                      `json:"summary"`
	Source              *string                      `json:"source"`
	PublishedAt         *incident.Timestamp          `json:"published_at"`
	LocationText        *string                      `json:"location_text"`
	Lat                 Nullable[float64]            `json:"lat"`
	Lon                 Nullable[float64]            `json:"lon"`
	ConstructionRelated *bool                        `json:"construction_related"`
	SuspectedFatalities *int                         `json:"suspected_fatalities"`
	VerifiedFatalities  Nullable[int]                `json:"verified_fatalities"`
	VerificationStatus  *incident.VerificationStatus `json:"verification_status"`
	Notes               *string                      `json:"notes"`
}

// Manual is a hand-entered incident.
type Manual struct {
	Title               string                      `json:"title"`
	URL                 string                      `json:"url"`
	Source              string                      `json:"source"`
	SourceType          string                      `json:"source_type"`
	PublishedAt         incident.Timestamp          `json:"published_at"`
	Summary             string                      `json:"summary"`
	LocationText        *string                     `json:"location_text"`
	Lat                 *float64                    `json:"lat"`
	Lon                 *float64                    `json:"lon"`
	ConstructionRelated LooseBool                   `json:"construction_related"`
	SuspectedFatalities int                         `json:"suspected_fatalities"`
	VerificationStatus  incident.VerificationStatus `json:"verification_status"`
	VerifiedFatalities  *int                        `json:"verified_fatalities"`
	Notes               string                      `json:"notes"`
}

// Nullable tells an explicit null apart from an absent field.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// LooseBool accepts JSON booleans and the strings "true", "yes", "y", "1".
type LooseBool bool

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*b = false
	case bool:
		*b = LooseBool(v)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			*b = true
		case "", "0", "false", "no", "n":
			*b = false
		default:
			return fmt.Errorf("invalid boolean %q", v)
		}
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// Warning reports a patch whose target id is not in the incident set.
type Warning struct {
	ID string
}

func (w Warning) String() string {
	return fmt.Sprintf("override references unknown incident %s", w.ID)
}
