package models

import (
	"time"

	"github.com/google/uuid"
)

// Precedence classifies which source family observed a signal first.
type Precedence string

const (
	PrecedenceInfraFirst   Precedence = "infra_first"
	PrecedenceSocialFirst  Precedence = "social_first"
	PrecedenceSimultaneous Precedence = "simultaneous"
	PrecedenceUnknown      Precedence = "unknown"
)

// DominantPattern is the majority precedence across cross-source signals,
// or InsufficientData when too few cross-source signals exist.
type DominantPattern string

const (
	PatternInfraFirst       DominantPattern = "infra_first"
	PatternSocialFirst      DominantPattern = "social_first"
	PatternSimultaneous     DominantPattern = "simultaneous"
	PatternInsufficientData DominantPattern = "insufficient_data"
)

// SourceAggregate summarizes one source's contribution to a signal.
// Invariant: FirstSeen <= LastSeen.
type SourceAggregate struct {
	Source         string    `json:"source"`
	Count          int       `json:"count"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	SampleEvidence []string  `json:"sample_evidence,omitempty"`
}

// TemporalLink describes the time relationship between the two
// earliest-represented sources of a cross-source signal.
type TemporalLink struct {
	DeltaHours float64    `json:"delta_hours"`
	Precedence Precedence `json:"precedence"`
	Confidence float64    `json:"confidence"`
}

// CorrelationSignal groups indicators sharing (kind, normalized value).
// A signal is cross-source when two or more distinct sources contributed
// at least one observation each.
type CorrelationSignal struct {
	ID        uuid.UUID         `json:"id"`
	Kind      IndicatorKind     `json:"kind"`
	Label     string            `json:"label"`
	PerSource []SourceAggregate `json:"per_source"`
	Temporal  *TemporalLink     `json:"temporal,omitempty"`
}

// CrossSource reports whether at least two distinct sources contributed.
func (s CorrelationSignal) CrossSource() bool {
	return len(s.PerSource) >= 2
}

// TotalCount returns the observation count across all sources.
func (s CorrelationSignal) TotalCount() int {
	total := 0
	for _, agg := range s.PerSource {
		total += agg.Count
	}
	return total
}

// CorrelationSummary carries aggregate counts and the dominant pattern.
type CorrelationSummary struct {
	TotalSignals    int             `json:"total_signals"`
	InfraOnly       int             `json:"infra_only"`
	SocialOnly      int             `json:"social_only"`
	Correlated      int             `json:"correlated"`
	DominantPattern DominantPattern `json:"dominant_pattern"`
}

// CorrelatedData is the correlation engine's full output for one run.
type CorrelatedData struct {
	Signals []CorrelationSignal `json:"signals"`
	Summary CorrelationSummary  `json:"summary"`
}
