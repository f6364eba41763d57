// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blueprint

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// block is a heading and the body lines that follow it up to the next heading.
type block struct {
	heading  string
	level    int
	markdown bool
	numbered bool
	body     []string
}

func (b block) bodyText() string {
	return strings.TrimSpace(strings.Join(b.body, "\n"))
}

var (
	mdHeadingPattern       = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
	numberedHeadingPattern = regexp.MustCompile(`^(?i:section\s+)?(\d{1,2}(?:\.\d{1,2})*)[.):]?\s+(.+)$`)
	sectionWordPattern     = regexp.MustCompile(`(?i)^section\s+\d+`)
	bulletPattern          = regexp.MustCompile(`^(?:[-*•+]|\d+[.)]|[a-z][.)])\s+(.+)$`)
)

// splitBlocks splits funding-call text into heading blocks. When the text
// contains Markdown headings only those are treated as headings; otherwise
// numbered lines, "Section N" lines, short all-caps lines and short lines
// ending in a colon are. Page markers like <!-- page 3 --> are dropped.
// Text before the first heading is returned as the preamble.
func splitBlocks(text string) (preamble []string, blocks []block) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	markdown := hasMarkdownHeadings(lines)

	var cur *block
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if _, ok := parsePageMarker(trimmed); ok || trimmed == "\f" {
			continue
		}

		if heading, level, ok := detectHeading(trimmed, markdown); ok {
			if cur != nil {
				blocks = append(blocks, *cur)
			}
			cur = &block{
				heading:  heading,
				level:    level,
				markdown: markdown,
				numbered: !markdown && numberedHeadingPattern.MatchString(trimmed),
			}
			continue
		}

		if cur == nil {
			preamble = append(preamble, line)
		} else {
			cur.body = append(cur.body, line)
		}
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}
	return preamble, blocks
}

func hasMarkdownHeadings(lines []string) bool {
	for _, line := range lines {
		if mdHeadingPattern.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// detectHeading reports whether line is a heading and returns its text and level.
func detectHeading(line string, markdown bool) (string, int, bool) {
	if line == "" {
		return "", 0, false
	}
	if markdown {
		m := mdHeadingPattern.FindStringSubmatch(line)
		if m == nil {
			return "", 0, false
		}
		return strings.TrimSpace(m[2]), len(m[1]), true
	}

	if m := numberedHeadingPattern.FindStringSubmatch(line); m != nil {
		title := strings.TrimSpace(m[2])
		if looksLikeTitle(title, 10) {
			level := strings.Count(m[1], ".") + 1
			if sectionWordPattern.MatchString(line) {
				level = 1
			}
			return title, level, true
		}
		return "", 0, false
	}

	if isAllCaps(line) && wordCount(line) <= 10 {
		return titleCase(strings.TrimSuffix(line, ":")), 1, true
	}

	if strings.HasSuffix(line, ":") && startsUpper(line) && wordCount(line) <= 8 {
		return strings.TrimSpace(strings.TrimSuffix(line, ":")), 2, true
	}

	return "", 0, false
}

// looksLikeTitle reports whether s reads as a heading rather than a sentence.
func looksLikeTitle(s string, maxWords int) bool {
	if s == "" || wordCount(s) > maxWords {
		return false
	}
	last := s[len(s)-1]
	return last != '.' && last != ',' && last != ';' && startsUpper(s)
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r) || unicode.IsDigit(r)
	}
	return false
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// titleCase converts an all-caps heading to title case.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if i > 0 && minorWords[w] {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var minorWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true,
	"for": true, "to": true, "in": true, "on": true, "or": true,
}

// parsePageMarker extracts the page number from an HTML comment like <!-- page 3 -->.
func parsePageMarker(line string) (int, bool) {
	if !strings.HasPrefix(line, "<!-- page ") || !strings.HasSuffix(line, " -->") {
		return 0, false
	}
	inner := strings.TrimPrefix(line, "<!-- page ")
	inner = strings.TrimSuffix(inner, " -->")
	var page int
	if _, err := fmt.Sscanf(inner, "%d", &page); err != nil {
		return 0, false
	}
	return page, true
}

// listItems returns bullet or numbered items in body. When the body has no
// list markers, each non-empty line is an item.
func listItems(body []string) []string {
	var bullets, lines []string
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
		if m := bulletPattern.FindStringSubmatch(trimmed); m != nil {
			bullets = append(bullets, strings.TrimSpace(m[1]))
		}
	}
	if len(bullets) > 0 {
		return bullets
	}
	return lines
}
