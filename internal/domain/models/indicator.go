package models

import (
	"strings"
	"time"
)

// IndicatorKind classifies an extracted indicator
type IndicatorKind string

const (
	IndicatorKindIP            IndicatorKind = "ip"
	IndicatorKindDomain        IndicatorKind = "domain"
	IndicatorKindCVE           IndicatorKind = "cve"
	IndicatorKindPort          IndicatorKind = "port"
	IndicatorKindKeyword       IndicatorKind = "keyword"
	IndicatorKindMalwareFamily IndicatorKind = "malware_family"
	IndicatorKindThreatActor   IndicatorKind = "threat_actor"
)

// Source tags for the two collector families
const (
	SourceNetExposure = "netexposure"
	SourceSocial      = "social"
)

// Indicator is a single typed observation extracted from a raw record.
// Immutable once created; deduplicated by (Kind, NormalizedValue).
type Indicator struct {
	Kind        IndicatorKind `json:"kind"`
	Value       string        `json:"value"`
	SourceTag   string        `json:"source_tag"`
	ObservedAt  time.Time     `json:"observed_at"`
	Confidence  float64       `json:"confidence"`
	EvidenceURL string        `json:"evidence_url,omitempty"`
}

// NormalizedValue returns the canonical form used for deduplication and
// signal grouping: lowercased except CVE IDs, which are uppercased.
func (i Indicator) NormalizedValue() string {
	return NormalizeValue(i.Kind, i.Value)
}

// Key returns the dedup/grouping key for this indicator.
func (i Indicator) Key() string {
	return string(i.Kind) + ":" + i.NormalizedValue()
}

// HasTimestamp reports whether ObservedAt carries a usable time. Malformed
// collector timestamps are zeroed during ingestion and excluded from
// temporal classification.
func (i Indicator) HasTimestamp() bool {
	return !i.ObservedAt.IsZero()
}

// NormalizeValue canonicalizes an indicator value for its kind.
func NormalizeValue(kind IndicatorKind, value string) string {
	value = strings.TrimSpace(value)
	if kind == IndicatorKindCVE {
		return strings.ToUpper(value)
	}
	return strings.ToLower(value)
}
