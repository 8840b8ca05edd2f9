package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

// Section headers the assessment and report stage prompts instruct the
// model to emit. Boundary detection scans for the next known header, so
// every header used in a prompt must be listed here.
var knownHeaders = []string{
	"RISK SCORE:",
	"KILL CHAIN PHASE:",
	"THREAT VECTORS:",
	"TREND:",
	"HEADLINE:",
	"SUMMARY:",
	"KEY FINDINGS:",
	"RECOMMENDED ACTIONS:",
}

// findSection returns the text between a case-insensitive header and the
// next known header (or end of text). Empty string when absent.
func findSection(text, header string) string {
	lower := strings.ToLower(text)
	start := strings.Index(lower, strings.ToLower(header))
	if start < 0 {
		return ""
	}
	start += len(header)

	end := len(text)
	for _, h := range knownHeaders {
		if strings.EqualFold(h, header) {
			continue
		}
		if i := strings.Index(lower[start:], strings.ToLower(h)); i >= 0 && start+i < end {
			end = start + i
		}
	}
	return strings.TrimSpace(text[start:end])
}

// parseBullets extracts list items from free text, matching leading -, •,
// or * markers. Lines without a marker are ignored.
func parseBullets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var item string
		switch {
		case strings.HasPrefix(line, "- "):
			item = line[2:]
		case strings.HasPrefix(line, "• "):
			item = line[len("• "):]
		case strings.HasPrefix(line, "* "):
			item = line[2:]
		case line == "-" || line == "•" || line == "*":
			continue
		default:
			continue
		}
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var numberPattern = regexp.MustCompile(`\b(\d{1,3})\b`)

// Qualitative risk words map to fixed scores when no numeric token exists.
var qualitativeScores = map[string]int{
	"critical": 90,
	"high":     70,
	"medium":   50,
	"low":      25,
}

// parseRiskScore extracts a 0..100 score from model text: an explicit
// numeric token wins, otherwise the first qualitative word. Returns
// (score, ok).
func parseRiskScore(text string) (int, bool) {
	for _, m := range numberPattern.FindAllString(text, -1) {
		if n, err := strconv.Atoi(m); err == nil && n >= 0 && n <= 100 {
			return n, true
		}
	}
	lower := strings.ToLower(text)
	for _, word := range []string{"critical", "high", "medium", "low"} {
		if strings.Contains(lower, word) {
			return qualitativeScores[word], true
		}
	}
	return 0, false
}

// firstLine returns the first non-empty line of text.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
