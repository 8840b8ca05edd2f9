package artifact

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"crosslight/internal/domain/models"
)

func sampleBuildInput() BuildInput {
	generated := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	return BuildInput{
		GeneratedAt: generated,
		ValidFor:    24 * time.Hour,
		Indicators: []models.Indicator{
			{Kind: models.IndicatorKindCVE, Value: "CVE-2026-1000", SourceTag: models.SourceSocial},
			{Kind: models.IndicatorKindCVE, Value: "CVE-2026-1000", SourceTag: models.SourceNetExposure},
			{Kind: models.IndicatorKindIP, Value: "203.0.113.7", SourceTag: models.SourceNetExposure},
		},
		Correlated: models.CorrelatedData{
			Signals: []models.CorrelationSignal{{
				Kind:  models.IndicatorKindCVE,
				Label: "CVE-2026-1000",
				PerSource: []models.SourceAggregate{
					{Source: models.SourceNetExposure, Count: 1},
					{Source: models.SourceSocial, Count: 1},
				},
				Temporal: &models.TemporalLink{DeltaHours: 2, Precedence: models.PrecedenceInfraFirst},
			}},
			Summary: models.CorrelationSummary{
				TotalSignals: 2, Correlated: 1, InfraOnly: 1,
				DominantPattern: models.PatternInfraFirst,
			},
		},
		Analysis: models.AnalysisResult{
			Extraction: models.ExtractionResult{
				CVEs:     []string{"CVE-2026-1000"},
				IPs:      []string{"203.0.113.7"},
				Severity: models.SeverityCounts{Critical: 1, Medium: 1},
				Summary:  "sample summary",
			},
			Narrative: models.NarrativeResult{
				Narrative:  "infra first narrative",
				Pattern:    models.PatternInfraFirst,
				Confidence: "medium",
			},
			Assessment: models.AssessmentResult{
				RiskScore:      45,
				RiskLevel:      models.RiskLevelElevated,
				KillChainPhase: "exploitation",
				Trend:          "rising",
			},
			Report: models.ReportResult{
				Headline: "Elevated risk",
				Summary:  "sample summary",
			},
		},
		Records: []models.RawRecord{
			{Source: models.SourceNetExposure, Host: &models.HostObservation{IP: "203.0.113.7", Port: 4444, Product: "Cobalt Strike"}},
			{Source: models.SourceSocial, Text: "post"},
		},
	}
}

func TestBuildRequiredSections(t *testing.T) {
	doc := Build(sampleBuildInput())

	if doc.Meta.Version != Version {
		t.Errorf("version = %q", doc.Meta.Version)
	}
	if !doc.Meta.ValidUntil.Equal(doc.Meta.GeneratedAt.Add(24 * time.Hour)) {
		t.Errorf("validUntil = %v", doc.Meta.ValidUntil)
	}
	if doc.Status.RiskScore != 45 || doc.Status.RiskLevel != models.RiskLevelElevated {
		t.Errorf("status = %+v", doc.Status)
	}
	if doc.Status.ConfidenceLevel == 0 {
		t.Error("confidence should reflect two sources")
	}
	if doc.Metrics.Total != 2 || doc.Metrics.Critical != 1 {
		t.Errorf("metrics = %+v", doc.Metrics)
	}
	if doc.Metrics.Categories.CVEs != 1 || doc.Metrics.Categories.IPs != 1 {
		t.Errorf("categories = %+v", doc.Metrics.Categories)
	}
}

func TestBuildOptionalSectionsPresent(t *testing.T) {
	doc := Build(sampleBuildInput())

	if doc.Correlation == nil || doc.Correlation.Correlated != 1 {
		t.Fatalf("correlation = %+v", doc.Correlation)
	}
	if len(doc.Correlation.Signals) != 1 || doc.Correlation.Signals[0].Precedence != "infra_first" {
		t.Errorf("signals = %+v", doc.Correlation.Signals)
	}
	if doc.Infrastructure == nil || doc.Infrastructure.HostCount != 1 {
		t.Errorf("infrastructure = %+v", doc.Infrastructure)
	}
	if doc.SocialIntel == nil || doc.SocialIntel.PostCount != 1 {
		t.Errorf("socialIntel = %+v", doc.SocialIntel)
	}
	if doc.CTIAnalysis == nil || doc.CTIAnalysis.Narrative == "" {
		t.Errorf("ctiAnalysis = %+v", doc.CTIAnalysis)
	}
	if doc.AssessmentLayer == nil || doc.AssessmentLayer.KillChainPhase != "exploitation" {
		t.Errorf("assessmentLayer = %+v", doc.AssessmentLayer)
	}
}

func TestBuildOptionalSectionsOmittedWhenEmpty(t *testing.T) {
	doc := Build(BuildInput{GeneratedAt: time.Now()})

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)

	for _, section := range []string{"correlation", "infrastructure", "socialIntel", "ctiAnalysis", "assessmentLayer"} {
		if strings.Contains(s, `"`+section+`"`) {
			t.Errorf("empty %s section should be omitted: %s", section, s)
		}
	}
	// Numeric fields still present when zero.
	if !strings.Contains(s, `"riskScore":0`) || !strings.Contains(s, `"total":0`) {
		t.Errorf("zero numerics must be emitted: %s", s)
	}
	// Required list fields are empty arrays, not null.
	if strings.Contains(s, `"cves":null`) || strings.Contains(s, `"keyFindings":null`) {
		t.Errorf("required lists must be [] not null: %s", s)
	}
}

func TestDocumentTreeRoundTrip(t *testing.T) {
	doc := Build(sampleBuildInput())
	tree, err := doc.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}

	out, err := tree.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	direct, _ := json.Marshal(doc)
	if string(out) != string(direct) {
		t.Error("tree round trip altered the document")
	}

	// Section order matches struct declaration order.
	s := string(out)
	if strings.Index(s, `"meta"`) > strings.Index(s, `"status"`) ||
		strings.Index(s, `"status"`) > strings.Index(s, `"executive"`) {
		t.Errorf("section order wrong: %s", s)
	}
}
