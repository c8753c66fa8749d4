// Package tagging normalizes and validates Chinese content tags.
package tagging

import "strings"

const maxTagRunes = 4

// Normalize strips whitespace and punctuation from a raw tag, keeping
// only CJK ideographs and ASCII digits. Normalizing an already
// normalized tag returns it unchanged.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if isKeptRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether tag is usable: non-empty, at most four runes,
// built from kept runes and containing at least one CJK ideograph.
func Valid(tag string) bool {
	if tag == "" {
		return false
	}
	count := 0
	hasCJK := false
	for _, r := range tag {
		if !isKeptRune(r) {
			return false
		}
		if isCJKIdeograph(r) {
			hasCJK = true
		}
		count++
		if count > maxTagRunes {
			return false
		}
	}
	return hasCJK
}

// NormalizeAll normalizes each raw tag, drops invalid results, and
// de-duplicates preserving first occurrence order.
func NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		tag := Normalize(r)
		if !Valid(tag) {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func isKeptRune(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	return isCJKIdeograph(r)
}

// isCJKIdeograph covers the unified ideograph block plus extensions A
// through G.
func isCJKIdeograph(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // Extension A
		return true
	case r >= 0x20000 && r <= 0x2A6DF: // Extension B
		return true
	case r >= 0x2A700 && r <= 0x2B73F: // Extension C
		return true
	case r >= 0x2B740 && r <= 0x2B81F: // Extension D
		return true
	case r >= 0x2B820 && r <= 0x2CEAF: // Extension E
		return true
	case r >= 0x2CEB0 && r <= 0x2EBEF: // Extension F
		return true
	case r >= 0x30000 && r <= 0x3134F: // Extension G
		return true
	}
	return false
}
