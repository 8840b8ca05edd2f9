package translate

import (
	"fmt"
	"regexp"
	"strings"
)

// Technical substrings inside otherwise-translatable prose are swapped for
// indexed placeholders before translation and restored afterwards, so the
// model cannot mangle them. The brackets are chosen to survive any
// reasonable tokenizer untouched.

const (
	placeholderOpen  = "⟦" // ⟦
	placeholderClose = "⟧" // ⟧
)

// protectedPatterns match substrings that must survive translation intact.
var protectedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`CVE-\d{4}-\d{4,}`),
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`),
	regexp.MustCompile(`[a-z][a-z0-9+.-]*://\S+`),
	regexp.MustCompile(`\b[a-fA-F0-9]{64}\b|\b[a-fA-F0-9]{40}\b|\b[a-fA-F0-9]{32}\b`),
	regexp.MustCompile(`@[\w.]+`),
}

// protectedProducts are product and tool names kept verbatim. Matched
// case-insensitively on word boundaries.
var protectedProducts = regexp.MustCompile(`(?i)\b(cobalt strike|metasploit|sliver|brute ratel|lockbit|blackcat|alphv|emotet|trickbot|qakbot|mirai|xmrig)\b`)

func placeholder(n int) string {
	return fmt.Sprintf("%sT%d%s", placeholderOpen, n, placeholderClose)
}

var placeholderPattern = regexp.MustCompile(placeholderOpen + `T(\d+)` + placeholderClose)

// protect replaces every protected token with an indexed placeholder and
// returns the masked text plus the substitution table.
func protect(text string) (string, []string) {
	var tokens []string
	replace := func(match string) string {
		// Reuse the index for repeated occurrences of the same token so
		// restoration is order-independent.
		for i, tok := range tokens {
			if tok == match {
				return placeholder(i)
			}
		}
		tokens = append(tokens, match)
		return placeholder(len(tokens) - 1)
	}

	for _, p := range protectedPatterns {
		text = p.ReplaceAllStringFunc(text, replace)
	}
	text = protectedProducts.ReplaceAllStringFunc(text, replace)
	return text, tokens
}

// restore reverses protect. Placeholders the model dropped stay dropped;
// placeholders it duplicated are each restored. Runs to a fixed point since
// a restored token can itself contain an earlier placeholder (an IP masked
// inside a later-masked URL).
func restore(text string, tokens []string) string {
	for i := 0; i < len(tokens)+1; i++ {
		next := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
			sub := placeholderPattern.FindStringSubmatch(match)
			var idx int
			fmt.Sscanf(sub[1], "%d", &idx)
			if idx < 0 || idx >= len(tokens) {
				return match
			}
			return tokens[idx]
		})
		if next == text {
			break
		}
		text = next
	}
	return text
}

// allPlaceholdersPresent reports whether every placeholder present in the
// masked source still occurs in the translated text. Part of the quality
// gate: a model that drops a placeholder loses a protected token.
func allPlaceholdersPresent(translated, masked string) bool {
	for _, ph := range placeholderPattern.FindAllString(masked, -1) {
		if !strings.Contains(translated, ph) {
			return false
		}
	}
	return true
}
