package extract

import (
	"testing"
	"time"

	"crosslight/internal/domain/models"
	"crosslight/pkg/logger"
)

func kindsOf(indicators []models.Indicator) map[models.IndicatorKind][]string {
	out := make(map[models.IndicatorKind][]string)
	for _, ind := range indicators {
		out[ind.Kind] = append(out[ind.Kind], ind.NormalizedValue())
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestExtractStructuredIndicators(t *testing.T) {
	e := New(logger.Nop())
	observed := time.Date(2026, 8, 10, 14, 0, 0, 0, time.UTC)

	records := []models.RawRecord{{
		Source:     models.SourceSocial,
		ObservedAt: observed,
		Text:       "Exploitation of cve-2026-31337 from 45.33.12.9 targeting port: 8443, payload hosted on evil-cdn.net",
	}}

	got := kindsOf(e.Extract(records))

	if !contains(got[models.IndicatorKindCVE], "CVE-2026-31337") {
		t.Errorf("CVE not extracted or not uppercased: %v", got[models.IndicatorKindCVE])
	}
	if !contains(got[models.IndicatorKindIP], "45.33.12.9") {
		t.Errorf("IP not extracted: %v", got[models.IndicatorKindIP])
	}
	if !contains(got[models.IndicatorKindPort], "8443") {
		t.Errorf("port not extracted: %v", got[models.IndicatorKindPort])
	}
	if !contains(got[models.IndicatorKindDomain], "evil-cdn.net") {
		t.Errorf("domain not extracted: %v", got[models.IndicatorKindDomain])
	}
}

func TestExtractDictionaryIndicators(t *testing.T) {
	e := New(logger.Nop())
	records := []models.RawRecord{{
		Source: models.SourceSocial,
		Text:   "LockBit affiliates linked to Scattered Spider deploying ransomware via phishing",
	}}

	got := kindsOf(e.Extract(records))

	if !contains(got[models.IndicatorKindMalwareFamily], "lockbit") {
		t.Errorf("malware family not matched: %v", got[models.IndicatorKindMalwareFamily])
	}
	if !contains(got[models.IndicatorKindThreatActor], "scattered spider") {
		t.Errorf("threat actor not matched: %v", got[models.IndicatorKindThreatActor])
	}
	if !contains(got[models.IndicatorKindKeyword], "ransomware") || !contains(got[models.IndicatorKindKeyword], "phishing") {
		t.Errorf("keywords not matched: %v", got[models.IndicatorKindKeyword])
	}
}

func TestExtractHostObservation(t *testing.T) {
	e := New(logger.Nop())
	records := []models.RawRecord{{
		Source: models.SourceNetExposure,
		Host:   &models.HostObservation{IP: "203.0.113.7", Port: 4444},
	}}

	got := kindsOf(e.Extract(records))
	if !contains(got[models.IndicatorKindIP], "203.0.113.7") {
		t.Errorf("host IP not mapped: %v", got[models.IndicatorKindIP])
	}
	if !contains(got[models.IndicatorKindPort], "4444") {
		t.Errorf("host port not mapped: %v", got[models.IndicatorKindPort])
	}
}

func TestExtractRejectsInvalidCandidates(t *testing.T) {
	e := New(logger.Nop())
	records := []models.RawRecord{{
		Source: models.SourceSocial,
		Text:   "version 1.2.300.4 update at port: 99999, see github.com and payload.exe readme.md",
	}}

	got := kindsOf(e.Extract(records))
	if len(got[models.IndicatorKindIP]) != 0 {
		t.Errorf("invalid octet accepted: %v", got[models.IndicatorKindIP])
	}
	if len(got[models.IndicatorKindPort]) != 0 {
		t.Errorf("out-of-range port accepted: %v", got[models.IndicatorKindPort])
	}
	if len(got[models.IndicatorKindDomain]) != 0 {
		t.Errorf("denylisted or file-name domain accepted: %v", got[models.IndicatorKindDomain])
	}
}

func TestExtractDedupsWithinRecord(t *testing.T) {
	e := New(logger.Nop())
	records := []models.RawRecord{{
		Source: models.SourceSocial,
		Text:   "CVE-2026-1111 again CVE-2026-1111 and cve-2026-1111",
	}}

	got := e.Extract(records)
	count := 0
	for _, ind := range got {
		if ind.Kind == models.IndicatorKindCVE {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 1 CVE after in-record dedup, got %d", count)
	}
}

func TestExtractKeepsDuplicatesAcrossRecords(t *testing.T) {
	e := New(logger.Nop())
	records := []models.RawRecord{
		{Source: models.SourceSocial, Text: "CVE-2026-2222 discussed"},
		{Source: models.SourceNetExposure, Text: "banner mentions CVE-2026-2222"},
	}

	got := e.Extract(records)
	count := 0
	for _, ind := range got {
		if ind.Kind == models.IndicatorKindCVE {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected one observation per record, got %d", count)
	}
}

func TestContainsWordBoundaries(t *testing.T) {
	if containsWord("sliverish tooling", "sliver") {
		t.Error("substring inside a word should not match")
	}
	if !containsWord("deploying sliver beacons", "sliver") {
		t.Error("whole word should match")
	}
}
