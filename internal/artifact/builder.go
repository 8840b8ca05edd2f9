package artifact

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"crosslight/internal/domain/models"
	"crosslight/internal/risk"
)

// Version identifies the artifact schema.
const Version = "1.0"

// Document is the single JSON artifact consumed by the dashboard. The first
// five sections are always present with numeric fields populated even when
// zero; optional sections are omitted entirely when there is no upstream
// data, and consumers treat absence as "no data".
type Document struct {
	Meta            Meta                    `json:"meta"`
	Status          Status                  `json:"status"`
	Executive       Executive               `json:"executive"`
	Metrics         Metrics                 `json:"metrics"`
	Indicators      IndicatorLists          `json:"indicators"`
	Correlation     *CorrelationSection     `json:"correlation,omitempty"`
	Infrastructure  *InfrastructureSection  `json:"infrastructure,omitempty"`
	SocialIntel     *SocialIntelSection     `json:"socialIntel,omitempty"`
	CTIAnalysis     *CTIAnalysisSection     `json:"ctiAnalysis,omitempty"`
	AssessmentLayer *AssessmentLayerSection `json:"assessmentLayer,omitempty"`
}

type Meta struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
	ValidUntil  time.Time `json:"validUntil"`
}

type Status struct {
	RiskLevel       models.RiskLevel `json:"riskLevel"`
	RiskScore       int              `json:"riskScore"`
	Trend           string           `json:"trend"`
	ConfidenceLevel int              `json:"confidenceLevel"`
}

type Executive struct {
	Headline           string   `json:"headline"`
	Summary            string   `json:"summary"`
	KeyFindings        []string `json:"keyFindings"`
	RecommendedActions []string `json:"recommendedActions"`
}

type Metrics struct {
	Critical   int                `json:"critical"`
	High       int                `json:"high"`
	Medium     int                `json:"medium"`
	Low        int                `json:"low"`
	Total      int                `json:"total"`
	Categories CategoryBreakdown `json:"categories"`
}

type CategoryBreakdown struct {
	CVEs            int `json:"cves"`
	IPs             int `json:"ips"`
	Domains         int `json:"domains"`
	Keywords        int `json:"keywords"`
	MalwareFamilies int `json:"malwareFamilies"`
	ThreatActors    int `json:"threatActors"`
}

type IndicatorLists struct {
	CVEs     []string `json:"cves"`
	Domains  []string `json:"domains"`
	IPs      []string `json:"ips"`
	Keywords []string `json:"keywords"`
}

type CorrelationSection struct {
	TotalSignals    int                    `json:"totalSignals"`
	Correlated      int                    `json:"correlated"`
	InfraOnly       int                    `json:"infraOnly"`
	SocialOnly      int                    `json:"socialOnly"`
	DominantPattern models.DominantPattern `json:"dominantPattern"`
	Signals         []SignalSummary        `json:"signals"`
}

type SignalSummary struct {
	Kind       string  `json:"kind"`
	Label      string  `json:"label"`
	Sources    int     `json:"sources"`
	Count      int     `json:"count"`
	Precedence string  `json:"precedence,omitempty"`
	DeltaHours float64 `json:"deltaHours,omitempty"`
}

type InfrastructureSection struct {
	HostCount   int      `json:"hostCount"`
	TopPorts    []string `json:"topPorts"`
	TopProducts []string `json:"topProducts"`
}

type SocialIntelSection struct {
	PostCount   int      `json:"postCount"`
	TopKeywords []string `json:"topKeywords"`
}

type CTIAnalysisSection struct {
	Narrative  string                 `json:"narrative"`
	KeyLinks   []string               `json:"keyLinks"`
	Pattern    models.DominantPattern `json:"pattern"`
	Confidence string                 `json:"confidence"`
	Fallback   bool                   `json:"fallback"`
}

type AssessmentLayerSection struct {
	KillChainPhase string   `json:"killChainPhase"`
	ThreatVectors  []string `json:"threatVectors"`
	Fallback       bool     `json:"fallback"`
}

// BuildInput carries everything one pipeline run produced.
type BuildInput struct {
	GeneratedAt time.Time
	ValidFor    time.Duration
	Indicators  []models.Indicator
	Correlated  models.CorrelatedData
	Analysis    models.AnalysisResult
	Records     []models.RawRecord
}

// Build assembles the artifact document. Deterministic given its input:
// list sections are sorted and capped, numeric fields always populated.
func Build(input BuildInput) *Document {
	validFor := input.ValidFor
	if validFor <= 0 {
		validFor = 24 * time.Hour
	}

	sources := make(map[string]bool)
	for _, ind := range input.Indicators {
		sources[ind.SourceTag] = true
	}

	assessment := input.Analysis.Assessment
	extraction := input.Analysis.Extraction
	report := input.Analysis.Report
	narrative := input.Analysis.Narrative

	doc := &Document{
		Meta: Meta{
			Version:     Version,
			GeneratedAt: input.GeneratedAt.UTC(),
			ValidUntil:  input.GeneratedAt.UTC().Add(validFor),
		},
		Status: Status{
			RiskLevel:       assessment.RiskLevel,
			RiskScore:       assessment.RiskScore,
			Trend:           assessment.Trend,
			ConfidenceLevel: risk.Confidence(len(sources), len(input.Indicators)),
		},
		Executive: Executive{
			Headline:           report.Headline,
			Summary:            report.Summary,
			KeyFindings:        emptyNotNil(report.KeyFindings),
			RecommendedActions: emptyNotNil(report.RecommendedActions),
		},
		Metrics: Metrics{
			Critical: extraction.Severity.Critical,
			High:     extraction.Severity.High,
			Medium:   extraction.Severity.Medium,
			Low:      extraction.Severity.Low,
			Total:    extraction.Severity.Total(),
			Categories: CategoryBreakdown{
				CVEs:            len(extraction.CVEs),
				IPs:             len(extraction.IPs),
				Domains:         len(extraction.Domains),
				Keywords:        len(extraction.Keywords),
				MalwareFamilies: len(extraction.MalwareFamilies),
				ThreatActors:    len(extraction.ThreatActors),
			},
		},
		Indicators: IndicatorLists{
			CVEs:     sortedCopy(extraction.CVEs),
			Domains:  sortedCopy(extraction.Domains),
			IPs:      sortedCopy(extraction.IPs),
			Keywords: sortedCopy(extraction.Keywords),
		},
	}

	if input.Correlated.Summary.TotalSignals > 0 {
		doc.Correlation = correlationSection(input.Correlated)
	}
	doc.Infrastructure = infrastructureSection(input.Records)
	doc.SocialIntel = socialIntelSection(input.Records, extraction.Keywords)

	if narrative.Narrative != "" {
		doc.CTIAnalysis = &CTIAnalysisSection{
			Narrative:  narrative.Narrative,
			KeyLinks:   emptyNotNil(narrative.KeyLinks),
			Pattern:    narrative.Pattern,
			Confidence: narrative.Confidence,
			Fallback:   narrative.Meta.Fallback,
		}
	}
	if assessment.KillChainPhase != "" {
		doc.AssessmentLayer = &AssessmentLayerSection{
			KillChainPhase: assessment.KillChainPhase,
			ThreatVectors:  emptyNotNil(assessment.ThreatVectors),
			Fallback:       assessment.Meta.Fallback,
		}
	}
	return doc
}

// Tree converts the document to an ordered JSON tree for translation.
func (d *Document) Tree() (*Value, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func correlationSection(data models.CorrelatedData) *CorrelationSection {
	sec := &CorrelationSection{
		TotalSignals:    data.Summary.TotalSignals,
		Correlated:      data.Summary.Correlated,
		InfraOnly:       data.Summary.InfraOnly,
		SocialOnly:      data.Summary.SocialOnly,
		DominantPattern: data.Summary.DominantPattern,
		Signals:         []SignalSummary{},
	}
	for _, sig := range data.Signals {
		if !sig.CrossSource() {
			continue
		}
		s := SignalSummary{
			Kind:    string(sig.Kind),
			Label:   sig.Label,
			Sources: len(sig.PerSource),
			Count:   sig.TotalCount(),
		}
		if sig.Temporal != nil {
			s.Precedence = string(sig.Temporal.Precedence)
			s.DeltaHours = sig.Temporal.DeltaHours
		}
		sec.Signals = append(sec.Signals, s)
	}
	return sec
}

func infrastructureSection(records []models.RawRecord) *InfrastructureSection {
	ports := make(map[string]int)
	products := make(map[string]int)
	hosts := 0
	for _, rec := range records {
		if rec.Source != models.SourceNetExposure || rec.Host == nil {
			continue
		}
		hosts++
		ports[strconv.Itoa(rec.Host.Port)]++
		if rec.Host.Product != "" {
			products[rec.Host.Product]++
		}
	}
	if hosts == 0 {
		return nil
	}
	return &InfrastructureSection{
		HostCount:   hosts,
		TopPorts:    topN(ports, 5),
		TopProducts: topN(products, 5),
	}
}

func socialIntelSection(records []models.RawRecord, keywords []string) *SocialIntelSection {
	posts := 0
	for _, rec := range records {
		if rec.Source == models.SourceSocial {
			posts++
		}
	}
	if posts == 0 {
		return nil
	}
	top := sortedCopy(keywords)
	if len(top) > 5 {
		top = top[:5]
	}
	return &SocialIntelSection{PostCount: posts, TopKeywords: top}
}

// topN returns the n highest-count keys, count descending then key
// ascending for determinism.
func topN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func emptyNotNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
