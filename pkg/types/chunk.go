// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Chunk is a passage of a community-context document held by the chunk store.
// Score is only populated on search results.
type Chunk struct {
	ID            string  `json:"id" yaml:"id"`
	DocumentID    string  `json:"document_id" yaml:"document_id"`
	DocumentTitle string  `json:"document_title" yaml:"document_title"`
	PageNumber    int     `json:"page_number" yaml:"page_number"`
	Text          string  `json:"text" yaml:"text"`
	Score         float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// Citation is a grounding reference derived from a retrieved Chunk.
type Citation struct {
	DocumentID     string  `json:"document_id" yaml:"document_id"`
	ChunkID        string  `json:"chunk_id,omitempty" yaml:"chunk_id,omitempty"`
	DocumentTitle  string  `json:"document_title" yaml:"document_title"`
	PageNumber     int     `json:"page_number" yaml:"page_number"`
	Snippet        string  `json:"snippet" yaml:"snippet"`
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
}

// Marker returns the inline marker that references this citation in draft text.
func (c Citation) Marker() string {
	return fmt.Sprintf("[%s, p.%d]", c.DocumentTitle, c.PageNumber)
}

// Key identifies a citation by normalized title and page. Two citations with
// the same key are interchangeable inside draft text.
func (c Citation) Key() string {
	return CitationKey(c.DocumentTitle, c.PageNumber)
}

// CitationKey builds the lookup key used to match inline markers.
func CitationKey(title string, page int) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(strings.Join(strings.Fields(title), " ")), page)
}

// CitationFromChunk derives a Citation from a retrieved chunk, truncating the
// snippet to snippetChars runes. A non-positive snippetChars keeps the full text.
func CitationFromChunk(ch Chunk, snippetChars int) Citation {
	snippet := strings.TrimSpace(ch.Text)
	if r := []rune(snippet); snippetChars > 0 && len(r) > snippetChars {
		snippet = string(r[:snippetChars]) + "..."
	}
	return Citation{
		DocumentID:     ch.DocumentID,
		ChunkID:        ch.ID,
		DocumentTitle:  ch.DocumentTitle,
		PageNumber:     ch.PageNumber,
		Snippet:        snippet,
		RelevanceScore: ch.Score,
	}
}

// GapReason explains why a section lacks grounding.
type GapReason string

const (
	GapNoGrounding   GapReason = "no_grounding"
	GapLowConfidence GapReason = "low_confidence"
)

// GapSeverity distinguishes gaps that block export from advisory ones.
type GapSeverity string

const (
	SeverityBlocking GapSeverity = "blocking"
	SeverityAdvisory GapSeverity = "advisory"
)

// GapReport flags a blueprint requirement without sufficient evidence.
// It is produced fresh on every retrieval pass.
type GapReport struct {
	SectionName      string      `json:"section_name" yaml:"section_name"`
	UnmetRequirement string      `json:"unmet_requirement" yaml:"unmet_requirement"`
	Reason           GapReason   `json:"reason" yaml:"reason"`
	Severity         GapSeverity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Detail           string      `json:"detail,omitempty" yaml:"detail,omitempty"`
}
