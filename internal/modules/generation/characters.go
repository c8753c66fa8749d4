package generation

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	maxCharactersStrict    = 5
	maxCharactersHeuristic = 3
)

var (
	bracketedArray = regexp.MustCompile(`(?s)\[.*\]`)
	labeledName    = regexp.MustCompile(`[：:]\s*([^\s，,。]+)`)
)

// parseCharacters interprets model output from the character
// extraction step. It prefers a JSON array, embedded or bare, and
// falls back to scanning labeled lines when the model ignored the
// format instructions. Unparseable output yields an empty list, never
// an error.
func parseCharacters(raw string) []CharacterInfo {
	if match := bracketedArray.FindString(raw); match != "" {
		var characters []CharacterInfo
		if err := json.Unmarshal([]byte(match), &characters); err == nil {
			return capCharacters(characters, maxCharactersStrict)
		}
	}

	var characters []CharacterInfo
	if err := json.Unmarshal([]byte(raw), &characters); err == nil {
		return capCharacters(characters, maxCharactersStrict)
	}

	return extractCharactersHeuristic(raw)
}

// extractCharactersHeuristic scans free-form text for name labels.
// Only names can be recovered this way, the other fields stay empty.
func extractCharactersHeuristic(text string) []CharacterInfo {
	var characters []CharacterInfo
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.Contains(line, "name") && !strings.Contains(line, "姓名") && !strings.Contains(line, "角色") {
			continue
		}
		m := labeledName.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		characters = append(characters, CharacterInfo{
			Name:       m[1],
			Attributes: []string{},
		})
	}
	return capCharacters(characters, maxCharactersHeuristic)
}

func capCharacters(characters []CharacterInfo, max int) []CharacterInfo {
	if characters == nil {
		return []CharacterInfo{}
	}
	if len(characters) > max {
		return characters[:max]
	}
	return characters
}
