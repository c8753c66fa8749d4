package generation

import (
	"regexp"
	"strings"
)

var (
	surroundingQuotes = regexp.MustCompile(`^["'“”‘’]+|["'“”‘’]+$`)
	excessNewlines    = regexp.MustCompile(`\n{3,}`)
)

// cleanGenerated normalizes model output: strips surrounding whitespace
// and quote runs, collapses blank-line stacks and truncates to maxLength
// runes. Truncation counts runes, not bytes, so Chinese text is not cut
// mid-character. The whole transform is idempotent, so edges exposed by
// truncation get stripped too.
func cleanGenerated(text string, maxLength int) string {
	cleaned := stripEdges(text)
	cleaned = excessNewlines.ReplaceAllString(cleaned, "\n\n")
	return stripEdges(truncateRunes(cleaned, maxLength))
}

// stripEdges removes alternating runs of whitespace and quotes from both
// ends until neither remains.
func stripEdges(s string) string {
	for {
		next := strings.TrimSpace(surroundingQuotes.ReplaceAllString(s, ""))
		if next == s {
			return s
		}
		s = next
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// truncateForPrompt shortens input destined for a model prompt and
// marks the cut with an ellipsis.
func truncateForPrompt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
