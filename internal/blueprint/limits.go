// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blueprint

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	wordLimitPatterns = limitPatterns(`words?`)
	charLimitPatterns = limitPatterns(`(?:characters?|chars?)`)
	pageLimitPatterns = limitPatterns(`pages?`)
)

// limitPatterns builds the phrasings funding calls use for a length limit
// in the given unit: "up to 500 words", "500 words maximum",
// "500-word limit", "(500 words)", "limit: 500 words".
func limitPatterns(unit string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:up to|maximum of|maximum|max\.?|limit of|limited to|no more than|not to exceed|not exceed(?:ing)?|at most)\s*(?:a\s+)?(\d[\d,]*)\s*` + unit + `\b`),
		regexp.MustCompile(`(?i)(\d[\d,]*)\s*` + unit + `\s*(?:maximum|max\b|limit|or less|or fewer)`),
		regexp.MustCompile(`(?i)(\d[\d,]*)[\s-]*` + unit + `[\s-]*(?:limit|maximum|max\b)`),
		regexp.MustCompile(`(?i)\(\s*(\d[\d,]*)\s*` + unit + `\s*\)`),
		regexp.MustCompile(`(?i)limit\s*:\s*(\d[\d,]*)\s*` + unit + `\b`),
	}
}

// findLimit returns the single limit stated in text. When text states no
// limit, or states several different ones, it returns nil.
func findLimit(text string, patterns []*regexp.Regexp) *int {
	values := make(map[int]bool)
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if n, ok := parseCount(m[1]); ok {
				values[n] = true
			}
		}
	}
	if len(values) != 1 {
		return nil
	}
	for n := range values {
		return &n
	}
	return nil
}

func parseCount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

var (
	// explicitWeightPatterns require a points or weight keyword.
	explicitWeightPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:points?|pts\b)`),
		regexp.MustCompile(`(?i)weight(?:ed|ing)?\s*(?:of|:)?\s*(\d+(?:\.\d+)?)`),
	}
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
)

// findWeight extracts a scoring weight. Bare percentages are accepted only
// when allowPercent is set, since body text often quotes statistics.
func findWeight(text string, allowPercent bool) *float64 {
	patterns := explicitWeightPatterns
	if allowPercent {
		patterns = append(append([]*regexp.Regexp(nil), explicitWeightPatterns...), percentPattern)
	}
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return &v
			}
		}
	}
	return nil
}
