package incident

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/lysyi3m/i79-incidents/app/source"
)

type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "unverified"
	StatusOfficial   VerificationStatus = "official"
	StatusVerified   VerificationStatus = "verified"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusUnverified, StatusOfficial, StatusVerified:
		return true
	}
	return false
}

// Incident is a classified, deduplicated record eligible for publication.
type Incident struct {
	ID                  string             `json:"id"`
	Title               string             `json:"title"`
	URL                 string             `json:"url"`
	Source              string             `json:"source"`
	PublishedAt         Timestamp          `json:"published_at"`
	Summary             string             `json:"summary"`
	Body                string             `json:"-"`
	LocationText        string             `json:"location_text"`
	Lat                 *float64           `json:"lat"`
	Lon                 *float64           `json:"lon"`
	ConstructionRelated bool               `json:"construction_related"`
	SuspectedFatalities int                `json:"suspected_fatalities"`
	SourceType          source.SourceType  `json:"source_type"`
	VerificationStatus  VerificationStatus `json:"verification_status"`
	VerifiedFatalities  *int               `json:"verified_fatalities"`
	Notes               string             `json:"notes"`
}

// ID derives the stable identity of a report from its url and title.
func ID(url, title string) string {
	sum := sha1.Sum([]byte(url + "|" + title))
	return hex.EncodeToString(sum[:])[:12]
}

// EffectiveFatalities is the severity figure shown to consumers: the
// verified count when known, otherwise the estimate.
func (i Incident) EffectiveFatalities() int {
	if i.VerifiedFatalities != nil {
		return *i.VerifiedFatalities
	}
	return i.SuspectedFatalities
}

func (i Incident) Verified() bool {
	return i.VerificationStatus == StatusOfficial || i.VerificationStatus == StatusVerified
}

// Clone returns a copy that shares no pointers with i.
func (i Incident) Clone() Incident {
	out := i
	out.Lat = clonePtr(i.Lat)
	out.Lon = clonePtr(i.Lon)
	out.VerifiedFatalities = clonePtr(i.VerifiedFatalities)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Timestamp serializes as RFC 3339 in UTC, or as "" when unset.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t *time.Time) Timestamp {
	if t == nil {
		return Timestamp{}
	}
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == nil || *raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(*raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTime accepts the loose date formats found in feeds and curator
// input. Timestamps without a zone are taken as UTC.
func ParseTime(raw string) (time.Time, error) {
	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	return parsed.UTC(), nil
}
