package models

import "time"

// Stage identifies one of the four sequential analysis stages.
type Stage string

const (
	StageExtraction           Stage = "extraction"
	StageCorrelationNarrative Stage = "correlation_narrative"
	StageStrategicAssessment  Stage = "strategic_assessment"
	StageExecutiveReport      Stage = "executive_report"
)

// RiskLevel buckets a bounded risk score.
type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "critical"
	RiskLevelElevated RiskLevel = "elevated"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelLow      RiskLevel = "low"
)

// StageMeta records how a stage result was produced. Fallback is true when
// the reasoning service could not supply a valid response and the result
// was derived locally from structured upstream data.
type StageMeta struct {
	Stage    Stage         `json:"stage"`
	Model    string        `json:"model,omitempty"`
	Fallback bool          `json:"fallback"`
	Duration time.Duration `json:"duration"`
}

// SeverityCounts tallies observations per severity bucket.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the number of counted observations.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// ExtractionResult is the first stage's output: the reasoning service's
// confirmation (or fallback tally) of what the deterministic extractor found.
type ExtractionResult struct {
	Meta            StageMeta      `json:"meta"`
	CVEs            []string       `json:"cves"`
	IPs             []string       `json:"ips"`
	Domains         []string       `json:"domains"`
	Keywords        []string       `json:"keywords"`
	MalwareFamilies []string       `json:"malware_families"`
	ThreatActors    []string       `json:"threat_actors"`
	Severity        SeverityCounts `json:"severity"`
	Summary         string         `json:"summary"`
}

// NarrativeResult is the second stage's output: a prose account of the
// cross-source relationships found by the correlation engine.
type NarrativeResult struct {
	Meta       StageMeta       `json:"meta"`
	Narrative  string          `json:"narrative"`
	KeyLinks   []string        `json:"key_links"`
	Pattern    DominantPattern `json:"pattern"`
	Confidence string          `json:"confidence"`
}

// AssessmentResult is the third stage's output: strategic risk framing.
type AssessmentResult struct {
	Meta           StageMeta `json:"meta"`
	RiskScore      int       `json:"risk_score"`
	RiskLevel      RiskLevel `json:"risk_level"`
	KillChainPhase string    `json:"kill_chain_phase"`
	ThreatVectors  []string  `json:"threat_vectors"`
	Trend          string    `json:"trend"`
}

// ReportResult is the final stage's output: the executive report body.
type ReportResult struct {
	Meta               StageMeta `json:"meta"`
	Headline           string    `json:"headline"`
	Summary            string    `json:"summary"`
	KeyFindings        []string  `json:"key_findings"`
	RecommendedActions []string  `json:"recommended_actions"`
}

// AnalysisResult bundles the four stage results. Every field is always
// fully populated: stages that cannot obtain a valid reasoning-service
// response fall back to local derivation, never to nil.
type AnalysisResult struct {
	Extraction ExtractionResult `json:"extraction"`
	Narrative  NarrativeResult  `json:"narrative"`
	Assessment AssessmentResult `json:"assessment"`
	Report     ReportResult     `json:"report"`
}
