package translate

import (
	"regexp"
	"strings"
)

// Field-name classification, consulted before pattern heuristics. Keys are
// the object keys strings sit under in the artifact (array elements inherit
// the containing key).
var fieldAllow = map[string]bool{
	"headline":           true,
	"summary":            true,
	"narrative":          true,
	"rationale":          true,
	"description":        true,
	"keyFindings":        true,
	"recommendedActions": true,
	"keyLinks":           true,
	"trend_note":         true,
}

var fieldDeny = map[string]bool{
	"version":         true,
	"generatedAt":     true,
	"validUntil":      true,
	"riskLevel":       true,
	"trend":           true,
	"confidenceLevel": true,
	"source":          true,
	"kind":            true,
	"label":           true,
	"id":              true,
	"url":             true,
	"queryString":     true,
	"tags":            true,
	"priority":        true,
	"killChainPhase":  true,
	"pattern":         true,
	"precedence":      true,
	"dominantPattern": true,
	"model":           true,
	"stage":           true,
}

// Whole subtrees that must never be touched, matched by dotted-path prefix.
var pathDenyPrefixes = []string{
	"meta",
	"indicators",
	"metrics",
	"status",
	"correlation.signals",
	"infrastructure",
}

// technicalPatterns classify undecided strings. A string that is entirely
// one of these is data, not prose, and is left alone.
var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`),
	regexp.MustCompile(`^(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?$`),
	regexp.MustCompile(`^[a-z][a-z0-9+.-]*://\S+$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}`),
	regexp.MustCompile(`^[A-Z]{2}$`),
	regexp.MustCompile(`^[a-fA-F0-9]{32}$|^[a-fA-F0-9]{40}$|^[a-fA-F0-9]{64}$`),
	regexp.MustCompile(`^@[\w.]+$`),
	regexp.MustCompile(`^#\w+$`),
	regexp.MustCompile(`^[\d\s.,:%/+-]+$`),
}

// eligible decides whether a string leaf should be sent for translation.
// Order: path deny-prefixes, field deny-list, field allow-list, then
// pattern classification for the undecided remainder.
func eligible(field, path, value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	for _, prefix := range pathDenyPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+".") {
			return false
		}
	}
	if fieldDeny[field] {
		return false
	}
	if fieldAllow[field] {
		return true
	}
	for _, p := range technicalPatterns {
		if p.MatchString(strings.TrimSpace(value)) {
			return false
		}
	}
	// Short tokens without spaces are identifiers more often than prose.
	if len(value) < 12 && !strings.ContainsRune(value, ' ') {
		return false
	}
	return true
}
