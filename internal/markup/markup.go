// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package markup handles the plain-text structure of draft sections:
// paragraph boundaries, word and character counts, and inline citation
// markers of the form [Document Title, p.N].
package markup

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

var (
	// markerPattern matches canonical citation markers: [Title, p.N].
	markerPattern = regexp.MustCompile(`\[([^\[\];]+?),\s*p\.\s*(\d+)\]`)

	// sourcePattern matches positional references: [Source N].
	sourcePattern = regexp.MustCompile(`(?i)\[source\s+(\d+)\]`)

	// groupPattern matches bracketed groups containing semicolons, such as
	// [A, p.1; B, p.4].
	groupPattern = regexp.MustCompile(`\[([^\[\]]*;[^\[\]]*)\]`)

	groupPartPattern = regexp.MustCompile(`^(.+?),\s*p\.\s*(\d+)$`)

	spaceBeforePunct = regexp.MustCompile(`[ \t]+([.,;:!?)])`)
	repeatedSpace    = regexp.MustCompile(`(\S)[ \t]{2,}`)
)

// Paragraphs splits text on blank lines. Paragraphs are trimmed and empty
// ones dropped, so indices are stable for a given text.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	var cur []string
	flush := func() {
		p := strings.TrimSpace(strings.Join(cur, "\n"))
		if p != "" {
			out = append(out, p)
		}
		cur = nil
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

// Join is the inverse of Paragraphs.
func Join(paragraphs []string) string {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// SingleParagraph folds blank lines inside s so that it occupies exactly
// one paragraph when joined into a draft.
func SingleParagraph(s string) string {
	return strings.Join(Paragraphs(s), "\n")
}

// StripMarkers removes citation markers from text.
func StripMarkers(text string) string {
	text = expandGroups(text)
	text = markerPattern.ReplaceAllString(text, "")
	text = sourcePattern.ReplaceAllString(text, "")
	return tidy(text)
}

// WordCount counts words in text, excluding citation markers and tokens
// with no letters or digits (bullets, table rules).
func WordCount(text string) int {
	n := 0
	for _, tok := range strings.Fields(StripMarkers(text)) {
		if strings.IndexFunc(tok, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}

// CharCount counts runes in text, excluding citation markers.
func CharCount(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(StripMarkers(text)))
}

// Marker is one inline citation marker found in text.
type Marker struct {
	Raw   string
	Title string
	Page  int
}

// Key returns the lookup key for the marker.
func (m Marker) Key() string {
	return types.CitationKey(m.Title, m.Page)
}

// Markers returns the canonical markers in text in order of appearance.
func Markers(text string) []Marker {
	text = expandGroups(text)
	var out []Marker
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		page, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, Marker{Raw: m[0], Title: strings.TrimSpace(m[1]), Page: page})
	}
	return out
}

// Resolution is the outcome of checking a text's markers against an allowlist.
type Resolution struct {
	// Text has every unmatched marker removed and every matched marker
	// rewritten to its canonical form.
	Text string

	// Used lists matched citations in first-appearance order, without duplicates.
	Used []types.Citation

	// Dropped lists the raw markers that matched nothing.
	Dropped []string
}

// Resolve maps each marker in text to a citation in allowed. Positional
// [Source N] references are rewritten to the N-th allowed citation. Markers
// that reference anything outside allowed are stripped and reported.
func Resolve(text string, allowed []types.Citation) Resolution {
	index := citationIndex(allowed)
	var res Resolution
	seen := make(map[string]bool)

	text = sourcePattern.ReplaceAllStringFunc(text, func(raw string) string {
		n, err := strconv.Atoi(sourcePattern.FindStringSubmatch(raw)[1])
		if err != nil || n < 1 || n > len(allowed) {
			res.Dropped = append(res.Dropped, raw)
			return ""
		}
		return allowed[n-1].Marker()
	})

	text = expandGroups(text)
	text = markerPattern.ReplaceAllStringFunc(text, func(raw string) string {
		m := markerPattern.FindStringSubmatch(raw)
		page, _ := strconv.Atoi(m[2])
		c, ok := index[types.CitationKey(m[1], page)]
		if !ok {
			res.Dropped = append(res.Dropped, raw)
			return ""
		}
		if !seen[c.Key()] {
			seen[c.Key()] = true
			res.Used = append(res.Used, c)
		}
		return c.Marker()
	})

	if len(res.Dropped) > 0 {
		text = tidy(text)
	}
	res.Text = text
	return res
}

// Collect returns the citations referenced by text without modifying it.
// Markers absent from allowed are returned as unresolved.
func Collect(text string, allowed []types.Citation) (used []types.Citation, unresolved []string) {
	index := citationIndex(allowed)
	seen := make(map[string]bool)
	for _, m := range Markers(text) {
		c, ok := index[m.Key()]
		if !ok {
			unresolved = append(unresolved, m.Raw)
			continue
		}
		if !seen[c.Key()] {
			seen[c.Key()] = true
			used = append(used, c)
		}
	}
	return used, unresolved
}

// MergeCitations appends citations from later lists whose key has not been
// seen, preserving first-appearance order.
func MergeCitations(lists ...[]types.Citation) []types.Citation {
	seen := make(map[string]bool)
	var out []types.Citation
	for _, list := range lists {
		for _, c := range list {
			if seen[c.Key()] {
				continue
			}
			seen[c.Key()] = true
			out = append(out, c)
		}
	}
	return out
}

func citationIndex(allowed []types.Citation) map[string]types.Citation {
	index := make(map[string]types.Citation, len(allowed))
	for _, c := range allowed {
		if _, dup := index[c.Key()]; !dup {
			index[c.Key()] = c
		}
	}
	return index
}

// expandGroups rewrites [A, p.1; B, p.2] into [A, p.1] [B, p.2]. Groups
// whose parts are not all citation markers are left untouched.
func expandGroups(text string) string {
	return groupPattern.ReplaceAllStringFunc(text, func(raw string) string {
		inner := raw[1 : len(raw)-1]
		parts := strings.Split(inner, ";")
		markers := make([]string, 0, len(parts))
		for _, p := range parts {
			m := groupPartPattern.FindStringSubmatch(strings.TrimSpace(p))
			if m == nil {
				return raw
			}
			markers = append(markers, "["+strings.TrimSpace(m[1])+", p."+m[2]+"]")
		}
		return strings.Join(markers, " ")
	})
}

// tidy collapses the whitespace left behind by removed markers without
// touching line structure.
func tidy(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = spaceBeforePunct.ReplaceAllString(line, "$1")
		line = repeatedSpace.ReplaceAllString(line, "$1 ")
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
