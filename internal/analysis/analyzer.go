package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crosslight/internal/domain/models"
	"crosslight/internal/reasoning"
	"crosslight/internal/risk"
	"crosslight/pkg/logger"
)

// Generator is the subset of the reasoning client the analyzer needs.
type Generator interface {
	Generate(ctx context.Context, stage, prompt string) (string, error)
	ModelFor(stage string) string
	Available() bool
}

// Input carries everything the four stages derive from.
type Input struct {
	Indicators  []models.Indicator
	Correlated  models.CorrelatedData
	RecordCount int
}

// Analyzer runs the four-stage chain. Stages are strictly sequential since
// each prompt embeds the prior stage's structured output. A stage that
// cannot obtain a parseable response falls back to local derivation, so
// Analyze always returns a complete result.
type Analyzer struct {
	gen    Generator
	logger *logger.Logger
}

func New(gen Generator, log *logger.Logger) *Analyzer {
	return &Analyzer{gen: gen, logger: log.WithComponent("analysis")}
}

func (a *Analyzer) Analyze(ctx context.Context, input Input) models.AnalysisResult {
	var result models.AnalysisResult
	result.Extraction = a.runExtraction(ctx, input)
	result.Narrative = a.runNarrative(ctx, input, result.Extraction)
	result.Assessment = a.runAssessment(ctx, input, result.Extraction, result.Narrative)
	result.Report = a.runReport(ctx, input, result.Extraction, result.Assessment)
	return result
}

func (a *Analyzer) meta(stage models.Stage, fallback bool, start time.Time) models.StageMeta {
	m := models.StageMeta{
		Stage:    stage,
		Fallback: fallback,
		Duration: time.Since(start),
	}
	if !fallback {
		m.Model = a.gen.ModelFor(string(stage))
	}
	if fallback {
		a.logger.Info().Str("stage", string(stage)).Msg("using local fallback")
	}
	return m
}

// stage 1

type extractionPayload struct {
	CVEs            []string              `json:"cves"`
	IPs             []string              `json:"ips"`
	Domains         []string              `json:"domains"`
	Keywords        []string              `json:"keywords"`
	MalwareFamilies []string              `json:"malware_families"`
	ThreatActors    []string              `json:"threat_actors"`
	Severity        models.SeverityCounts `json:"severity"`
	Summary         string                `json:"summary"`
}

func (a *Analyzer) runExtraction(ctx context.Context, input Input) models.ExtractionResult {
	start := time.Now()
	stage := models.StageExtraction

	text, err := a.gen.Generate(ctx, string(stage), extractionPrompt(input))
	if err == nil {
		var payload extractionPayload
		if perr := reasoning.ParseJSON(text, &payload); perr == nil && payload.Summary != "" {
			res := models.ExtractionResult{
				CVEs:            payload.CVEs,
				IPs:             payload.IPs,
				Domains:         payload.Domains,
				Keywords:        payload.Keywords,
				MalwareFamilies: payload.MalwareFamilies,
				ThreatActors:    payload.ThreatActors,
				Severity:        payload.Severity,
				Summary:         payload.Summary,
			}
			res.Meta = a.meta(stage, false, start)
			return res
		}
	}

	res := fallbackExtraction(input)
	res.Meta = a.meta(stage, true, start)
	return res
}

// stage 2

type narrativePayload struct {
	Narrative  string   `json:"narrative"`
	KeyLinks   []string `json:"key_links"`
	Confidence string   `json:"confidence"`
}

func (a *Analyzer) runNarrative(ctx context.Context, input Input, extraction models.ExtractionResult) models.NarrativeResult {
	start := time.Now()
	stage := models.StageCorrelationNarrative

	text, err := a.gen.Generate(ctx, string(stage), narrativePrompt(input, extraction))
	if err == nil {
		var payload narrativePayload
		if perr := reasoning.ParseJSON(text, &payload); perr == nil && payload.Narrative != "" {
			return models.NarrativeResult{
				Meta:      a.meta(stage, false, start),
				Narrative: payload.Narrative,
				KeyLinks:  payload.KeyLinks,
				// The engine's classification is authoritative; the model
				// only narrates it.
				Pattern:    input.Correlated.Summary.DominantPattern,
				Confidence: payload.Confidence,
			}
		}
	}

	res := fallbackNarrative(input)
	res.Meta = a.meta(stage, true, start)
	return res
}

// stage 3

func (a *Analyzer) runAssessment(ctx context.Context, input Input, extraction models.ExtractionResult, narrative models.NarrativeResult) models.AssessmentResult {
	start := time.Now()
	stage := models.StageStrategicAssessment

	text, err := a.gen.Generate(ctx, string(stage), assessmentPrompt(input, extraction, narrative))
	if err == nil {
		if res, ok := parseAssessment(text); ok {
			res.Meta = a.meta(stage, false, start)
			return res
		}
	}

	res := fallbackAssessment(input, extraction)
	res.Meta = a.meta(stage, true, start)
	return res
}

// parseAssessment reads the section-header format the assessment prompt
// asks for. A response without a parseable risk score is rejected.
func parseAssessment(text string) (models.AssessmentResult, bool) {
	scoreSection := findSection(text, "RISK SCORE:")
	score, ok := parseRiskScore(scoreSection)
	if !ok {
		return models.AssessmentResult{}, false
	}

	res := models.AssessmentResult{
		RiskScore:      score,
		RiskLevel:      risk.Level(score),
		KillChainPhase: strings.ToLower(firstLine(findSection(text, "KILL CHAIN PHASE:"))),
		ThreatVectors:  parseBullets(findSection(text, "THREAT VECTORS:")),
		Trend:          strings.ToLower(firstLine(findSection(text, "TREND:"))),
	}
	if res.KillChainPhase == "" {
		res.KillChainPhase = "unknown"
	}
	if res.Trend == "" {
		res.Trend = "stable"
	}
	return res, true
}

// stage 4

func (a *Analyzer) runReport(ctx context.Context, input Input, extraction models.ExtractionResult, assessment models.AssessmentResult) models.ReportResult {
	start := time.Now()
	stage := models.StageExecutiveReport

	text, err := a.gen.Generate(ctx, string(stage), reportPrompt(input, extraction, assessment))
	if err == nil {
		if res, ok := parseReport(text); ok {
			res.Meta = a.meta(stage, false, start)
			return res
		}
	}

	res := fallbackReport(input, extraction, assessment)
	res.Meta = a.meta(stage, true, start)
	return res
}

func parseReport(text string) (models.ReportResult, bool) {
	headline := firstLine(findSection(text, "HEADLINE:"))
	if headline == "" {
		return models.ReportResult{}, false
	}
	return models.ReportResult{
		Headline:           headline,
		Summary:            findSection(text, "SUMMARY:"),
		KeyFindings:        parseBullets(findSection(text, "KEY FINDINGS:")),
		RecommendedActions: parseBullets(findSection(text, "RECOMMENDED ACTIONS:")),
	}, true
}

// prompts

func extractionPrompt(input Input) string {
	var sb strings.Builder
	sb.WriteString("You are a threat intelligence analyst. Review the extracted indicators below, ")
	sb.WriteString("drop obvious noise, estimate severity counts, and summarize.\n\n")
	sb.WriteString("Indicators:\n")
	for _, ind := range input.Indicators {
		fmt.Fprintf(&sb, "- [%s] %s (source: %s)\n", ind.Kind, ind.NormalizedValue(), ind.SourceTag)
	}
	fmt.Fprintf(&sb, "\nTotal raw records: %d\n\n", input.RecordCount)
	sb.WriteString(`Respond with strict JSON only, no prose, matching:
{"cves": [], "ips": [], "domains": [], "keywords": [], "malware_families": [], "threat_actors": [], "severity": {"critical": 0, "high": 0, "medium": 0, "low": 0}, "summary": ""}`)
	return sb.String()
}

func narrativePrompt(input Input, extraction models.ExtractionResult) string {
	var sb strings.Builder
	sb.WriteString("You are a threat intelligence analyst. Write a short narrative explaining the cross-source correlations below.\n\n")

	extractionJSON, _ := json.Marshal(extraction)
	sb.WriteString("Prior extraction stage output:\n")
	sb.Write(extractionJSON)
	sb.WriteString("\n\nCross-source signals:\n")
	for _, sig := range input.Correlated.Signals {
		if !sig.CrossSource() {
			continue
		}
		fmt.Fprintf(&sb, "- %s %s: %d observations across %d sources", sig.Kind, sig.Label, sig.TotalCount(), len(sig.PerSource))
		if sig.Temporal != nil {
			fmt.Fprintf(&sb, ", precedence %s, delta %.1fh", sig.Temporal.Precedence, sig.Temporal.DeltaHours)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nDominant pattern: %s\n\n", input.Correlated.Summary.DominantPattern)
	sb.WriteString(`Respond with strict JSON only matching:
{"narrative": "", "key_links": [], "confidence": "low|medium|high"}`)
	return sb.String()
}

func assessmentPrompt(input Input, extraction models.ExtractionResult, narrative models.NarrativeResult) string {
	var sb strings.Builder
	sb.WriteString("You are a threat intelligence analyst producing a strategic assessment.\n\n")
	fmt.Fprintf(&sb, "Severity counts: critical=%d high=%d medium=%d low=%d\n",
		extraction.Severity.Critical, extraction.Severity.High,
		extraction.Severity.Medium, extraction.Severity.Low)
	fmt.Fprintf(&sb, "Correlation narrative: %s\n\n", narrative.Narrative)
	sb.WriteString(`Respond using exactly these section headers:
RISK SCORE: <0-100>
KILL CHAIN PHASE: <single phase name>
THREAT VECTORS:
- <vector>
TREND: <rising|stable|declining>`)
	return sb.String()
}

func reportPrompt(input Input, extraction models.ExtractionResult, assessment models.AssessmentResult) string {
	var sb strings.Builder
	sb.WriteString("You are a threat intelligence analyst writing an executive report.\n\n")
	fmt.Fprintf(&sb, "Risk: %s (score %d), kill chain phase %s, trend %s\n",
		assessment.RiskLevel, assessment.RiskScore, assessment.KillChainPhase, assessment.Trend)
	fmt.Fprintf(&sb, "Extraction summary: %s\n\n", extraction.Summary)
	sb.WriteString(`Respond using exactly these section headers:
HEADLINE: <one line>
SUMMARY: <short paragraph>
KEY FINDINGS:
- <finding>
RECOMMENDED ACTIONS:
- <action>`)
	return sb.String()
}
