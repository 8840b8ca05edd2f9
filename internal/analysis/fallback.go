package analysis

import (
	"fmt"
	"sort"
	"strings"

	"crosslight/internal/domain/models"
	"crosslight/internal/risk"
)

// Local fallback derivation. Every function here is deterministic and works
// only from structured data already in hand, so a stage result is always
// well-formed even when the reasoning service is down or returns garbage.

var kindSeverity = map[models.IndicatorKind]string{
	models.IndicatorKindCVE:           "high",
	models.IndicatorKindMalwareFamily: "high",
	models.IndicatorKindThreatActor:   "high",
	models.IndicatorKindIP:            "medium",
	models.IndicatorKindDomain:        "medium",
	models.IndicatorKindPort:          "low",
	models.IndicatorKindKeyword:       "low",
}

func fallbackExtraction(input Input) models.ExtractionResult {
	res := models.ExtractionResult{
		CVEs:            uniqueValues(input.Indicators, models.IndicatorKindCVE),
		IPs:             uniqueValues(input.Indicators, models.IndicatorKindIP),
		Domains:         uniqueValues(input.Indicators, models.IndicatorKindDomain),
		Keywords:        uniqueValues(input.Indicators, models.IndicatorKindKeyword),
		MalwareFamilies: uniqueValues(input.Indicators, models.IndicatorKindMalwareFamily),
		ThreatActors:    uniqueValues(input.Indicators, models.IndicatorKindThreatActor),
	}

	crossSource := make(map[string]bool)
	for _, sig := range input.Correlated.Signals {
		if sig.CrossSource() {
			crossSource[string(sig.Kind)+":"+sig.Label] = true
		}
	}

	seen := make(map[string]bool)
	for _, ind := range input.Indicators {
		key := ind.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		sev := kindSeverity[ind.Kind]
		if crossSource[key] {
			sev = bumpSeverity(sev)
		}
		switch sev {
		case "critical":
			res.Severity.Critical++
		case "high":
			res.Severity.High++
		case "medium":
			res.Severity.Medium++
		default:
			res.Severity.Low++
		}
	}

	res.Summary = fmt.Sprintf(
		"%d distinct indicators extracted across %d records: %d CVEs, %d IPs, %d domains, %d malware families, %d threat actors.",
		len(seen), input.RecordCount,
		len(res.CVEs), len(res.IPs), len(res.Domains),
		len(res.MalwareFamilies), len(res.ThreatActors),
	)
	return res
}

func bumpSeverity(sev string) string {
	switch sev {
	case "high":
		return "critical"
	case "medium":
		return "high"
	case "low":
		return "medium"
	}
	return sev
}

func fallbackNarrative(input Input) models.NarrativeResult {
	sum := input.Correlated.Summary
	var sb strings.Builder
	fmt.Fprintf(&sb, "Correlation produced %d signals: %d corroborated by both source families, %d seen only in infrastructure scans, %d only in social chatter.",
		sum.TotalSignals, sum.Correlated, sum.InfraOnly, sum.SocialOnly)

	switch sum.DominantPattern {
	case models.PatternInfraFirst:
		sb.WriteString(" Infrastructure exposure preceded public discussion, consistent with active deployment before disclosure.")
	case models.PatternSocialFirst:
		sb.WriteString(" Public discussion preceded observed infrastructure, consistent with opportunistic adoption of disclosed techniques.")
	case models.PatternSimultaneous:
		sb.WriteString(" Both source families observed the activity within the same window.")
	}

	var links []string
	for _, sig := range input.Correlated.Signals {
		if sig.CrossSource() {
			links = append(links, fmt.Sprintf("%s %s (%d observations)", sig.Kind, sig.Label, sig.TotalCount()))
		}
		if len(links) == 5 {
			break
		}
	}

	confidence := "low"
	if sum.Correlated >= 3 {
		confidence = "high"
	} else if sum.Correlated >= 1 {
		confidence = "medium"
	}

	return models.NarrativeResult{
		Narrative:  sb.String(),
		KeyLinks:   links,
		Pattern:    sum.DominantPattern,
		Confidence: confidence,
	}
}

// killChainKeywords maps observable terms to kill-chain phases, checked in
// order so later-phase evidence wins over earlier-phase evidence.
var killChainKeywords = []struct {
	phase string
	terms []string
}{
	{"exfiltration", []string{"exfiltration", "data breach"}},
	{"command-and-control", []string{"c2", "command and control", "botnet", "cobalt strike", "sliver"}},
	{"lateral-movement", []string{"lateral movement", "privilege escalation"}},
	{"exploitation", []string{"rce", "exploit kit", "zero-day", "0day", "webshell", "backdoor"}},
	{"delivery", []string{"phishing", "credential stuffing", "initial access"}},
}

func fallbackAssessment(input Input, extraction models.ExtractionResult) models.AssessmentResult {
	score := risk.Score(
		extraction.Severity.Critical,
		extraction.Severity.High,
		extraction.Severity.Medium,
		extraction.Severity.Low,
	)

	observed := make(map[string]bool)
	for _, kw := range extraction.Keywords {
		observed[kw] = true
	}
	for _, fam := range extraction.MalwareFamilies {
		observed[fam] = true
	}

	phase := "reconnaissance"
	if len(extraction.CVEs) > 0 {
		phase = "exploitation"
	}
	for _, kc := range killChainKeywords {
		matched := false
		for _, term := range kc.terms {
			if observed[term] {
				matched = true
				break
			}
		}
		if matched {
			phase = kc.phase
			break
		}
	}

	vectors := append([]string{}, extraction.Keywords...)
	sort.Strings(vectors)
	if len(vectors) > 5 {
		vectors = vectors[:5]
	}

	return models.AssessmentResult{
		RiskScore:      score,
		RiskLevel:      risk.Level(score),
		KillChainPhase: phase,
		ThreatVectors:  vectors,
		Trend:          "stable",
	}
}

func fallbackReport(input Input, extraction models.ExtractionResult, assessment models.AssessmentResult) models.ReportResult {
	headline := fmt.Sprintf("%s risk: %d distinct indicators across %d correlated signals",
		strings.ToUpper(string(assessment.RiskLevel)),
		extraction.Severity.Total(),
		input.Correlated.Summary.Correlated,
	)

	var findings []string
	if len(extraction.CVEs) > 0 {
		findings = append(findings, fmt.Sprintf("%d CVEs under active discussion or exposure: %s",
			len(extraction.CVEs), strings.Join(capList(extraction.CVEs, 3), ", ")))
	}
	if len(extraction.MalwareFamilies) > 0 {
		findings = append(findings, fmt.Sprintf("Malware families observed: %s",
			strings.Join(capList(extraction.MalwareFamilies, 5), ", ")))
	}
	if len(extraction.ThreatActors) > 0 {
		findings = append(findings, fmt.Sprintf("Named threat actors: %s",
			strings.Join(capList(extraction.ThreatActors, 5), ", ")))
	}
	if input.Correlated.Summary.Correlated > 0 {
		findings = append(findings, fmt.Sprintf("%d indicators corroborated by both source families (dominant pattern: %s)",
			input.Correlated.Summary.Correlated, input.Correlated.Summary.DominantPattern))
	}
	if len(findings) == 0 {
		findings = append(findings, "No significant indicators in this collection window")
	}

	actions := []string{
		"Review exposed services matching the listed indicators against your asset inventory",
	}
	if len(extraction.CVEs) > 0 {
		actions = append(actions, "Prioritize patching for the listed CVEs")
	}
	if assessment.KillChainPhase == "command-and-control" || assessment.KillChainPhase == "exfiltration" {
		actions = append(actions, "Hunt for outbound connections to the listed IPs and domains")
	}

	return models.ReportResult{
		Headline:           headline,
		Summary:            extraction.Summary,
		KeyFindings:        findings,
		RecommendedActions: actions,
	}
}

func uniqueValues(indicators []models.Indicator, kind models.IndicatorKind) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ind := range indicators {
		if ind.Kind != kind {
			continue
		}
		v := ind.NormalizedValue()
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func capList(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
