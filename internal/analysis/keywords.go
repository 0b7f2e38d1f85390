package analysis

import "strings"

// MaxKeywords caps how many proposed keywords are kept
const MaxKeywords = 5

// ParseKeywords turns a comma-separated model reply into at most MaxKeywords
// lowercase phrases, in the order first seen.
func ParseKeywords(raw string) []string {
	keywords := []string{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		kw := NormalizeKeyword(part)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	return keywords
}

// NormalizeKeyword trims and lowercases a single keyword
func NormalizeKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}
