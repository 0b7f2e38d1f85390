package metrics

import (
	"slices"
	"strings"
)

// KeywordComparison scores proposed keywords against the expected labels.
// Matching is exact after trimming and lowercasing.
type KeywordComparison struct {
	Expected  []string
	Proposed  []string
	Matched   []string
	Missing   []string
	Extra     []string
	Precision float64
	Recall    float64
	F1        float64
}

func normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && !slices.Contains(out, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// CompareKeywords computes precision, recall and F1. When both sides are
// empty the proposal is a perfect match.
func CompareKeywords(expected, proposed []string) *KeywordComparison {
	c := &KeywordComparison{
		Expected: normalize(expected),
		Proposed: normalize(proposed),
		Matched:  []string{},
		Missing:  []string{},
		Extra:    []string{},
	}

	for _, kw := range c.Proposed {
		if slices.Contains(c.Expected, kw) {
			c.Matched = append(c.Matched, kw)
		} else {
			c.Extra = append(c.Extra, kw)
		}
	}
	for _, kw := range c.Expected {
		if !slices.Contains(c.Proposed, kw) {
			c.Missing = append(c.Missing, kw)
		}
	}

	if len(c.Expected) == 0 && len(c.Proposed) == 0 {
		c.Precision, c.Recall, c.F1 = 1, 1, 1
		return c
	}

	if len(c.Proposed) > 0 {
		c.Precision = float64(len(c.Matched)) / float64(len(c.Proposed))
	}
	if len(c.Expected) > 0 {
		c.Recall = float64(len(c.Matched)) / float64(len(c.Expected))
	}
	if c.Precision+c.Recall > 0 {
		c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
	}
	return c
}
