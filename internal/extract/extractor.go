package extract

import (
	"regexp"
	"strconv"
	"strings"

	"crosslight/internal/domain/models"
	"crosslight/pkg/logger"
)

// Pattern table for structured indicators. Patterns match candidates; the
// validators below decide what survives.
var patterns = map[models.IndicatorKind]*regexp.Regexp{
	models.IndicatorKindCVE:    regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`),
	models.IndicatorKindIP:     regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	models.IndicatorKindPort:   regexp.MustCompile(`(?i)\bport[:\s]\s*(\d{1,5})\b`),
	models.IndicatorKindDomain: regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}\b`),
}

// domainDenylist drops domains that appear constantly in scraped text but
// carry no intelligence value (platforms, shorteners, doc sites).
var domainDenylist = map[string]bool{
	"twitter.com":    true,
	"x.com":          true,
	"t.co":           true,
	"bit.ly":         true,
	"github.com":     true,
	"youtube.com":    true,
	"reddit.com":     true,
	"linkedin.com":   true,
	"facebook.com":   true,
	"shodan.io":      true,
	"www.shodan.io":  true,
	"virustotal.com": true,
	"example.com":    true,
	"schema.org":     true,
	"w3.org":         true,
}

// fileExtensionTLDs are pseudo-TLDs produced when the domain pattern matches
// file names embedded in post text.
var fileExtensionTLDs = map[string]bool{
	"exe": true, "dll": true, "bat": true, "ps1": true, "sh": true,
	"zip": true, "rar": true, "html": true, "php": true, "asp": true,
	"aspx": true, "js": true, "json": true, "xml": true, "txt": true,
	"pdf": true, "doc": true, "docx": true, "xls": true, "png": true,
	"jpg": true, "gif": true, "py": true, "md": true, "yml": true,
	"yaml": true, "log": true, "conf": true, "ini": true,
}

// Extractor converts raw records into typed indicators via a regex pass for
// structured values and a dictionary pass for known families, actors and
// attack terms. It holds no state across calls.
type Extractor struct {
	logger *logger.Logger
}

func New(log *logger.Logger) *Extractor {
	return &Extractor{logger: log.WithComponent("extract")}
}

// Extract runs both passes over every record. Indicators are deduplicated
// within a record (the same value twice in one post is one observation) but
// not across records, since per-source counts feed correlation.
func (e *Extractor) Extract(records []models.RawRecord) []models.Indicator {
	var out []models.Indicator
	for _, rec := range records {
		out = append(out, e.extractRecord(rec)...)
	}
	e.logger.Debug().
		Int("records", len(records)).
		Int("indicators", len(out)).
		Msg("extraction completed")
	return out
}

func (e *Extractor) extractRecord(rec models.RawRecord) []models.Indicator {
	seen := make(map[string]bool)
	var out []models.Indicator

	add := func(kind models.IndicatorKind, value string, confidence float64) {
		ind := models.Indicator{
			Kind:        kind,
			Value:       value,
			SourceTag:   rec.Source,
			ObservedAt:  rec.ObservedAt,
			Confidence:  confidence,
			EvidenceURL: rec.EvidenceURL,
		}
		if key := ind.Key(); !seen[key] {
			seen[key] = true
			out = append(out, ind)
		}
	}

	// Structured host observations map directly, no regex needed.
	if rec.Host != nil {
		if validIP(rec.Host.IP) {
			add(models.IndicatorKindIP, rec.Host.IP, 0.9)
		}
		if rec.Host.Port > 0 && rec.Host.Port <= 65535 {
			add(models.IndicatorKindPort, strconv.Itoa(rec.Host.Port), 0.9)
		}
	}

	text := rec.Text
	if text == "" {
		return out
	}

	for _, m := range patterns[models.IndicatorKindCVE].FindAllString(text, -1) {
		add(models.IndicatorKindCVE, m, 0.9)
	}
	for _, m := range patterns[models.IndicatorKindIP].FindAllString(text, -1) {
		if validIP(m) {
			add(models.IndicatorKindIP, m, 0.7)
		}
	}
	for _, m := range patterns[models.IndicatorKindPort].FindAllStringSubmatch(text, -1) {
		if p, err := strconv.Atoi(m[1]); err == nil && p > 0 && p <= 65535 {
			add(models.IndicatorKindPort, m[1], 0.6)
		}
	}
	for _, m := range patterns[models.IndicatorKindDomain].FindAllString(text, -1) {
		if validDomain(m) {
			add(models.IndicatorKindDomain, m, 0.6)
		}
	}

	lower := strings.ToLower(text)
	for _, term := range malwareFamilies {
		if containsWord(lower, term) {
			add(models.IndicatorKindMalwareFamily, term, 0.8)
		}
	}
	for _, term := range threatActors {
		if containsWord(lower, term) {
			add(models.IndicatorKindThreatActor, term, 0.8)
		}
	}
	for _, term := range attackKeywords {
		if containsWord(lower, term) {
			add(models.IndicatorKindKeyword, term, 0.5)
		}
	}

	return out
}

func validIP(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if len(p) > 1 && p[0] == '0' {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

func validDomain(s string) bool {
	s = strings.ToLower(strings.TrimSuffix(s, "."))
	if len(s) < 4 || len(s) > 253 {
		return false
	}
	if domainDenylist[s] {
		return false
	}
	// Domain patterns also match dotted version strings and file names.
	dot := strings.LastIndexByte(s, '.')
	tld := s[dot+1:]
	if fileExtensionTLDs[tld] {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// containsWord reports whether term occurs in text on word boundaries.
// Both arguments are expected lowercase.
func containsWord(text, term string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(term)
		beforeOK := i == 0 || !isWordByte(text[i-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
