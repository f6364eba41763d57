// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionDraftLocks(t *testing.T) {
	d := &SectionDraft{}
	d.Lock(3, 1, 3, -2)
	assert.Equal(t, []int{1, 3}, d.LockedParagraphs)
	assert.True(t, d.IsLocked(1))
	assert.False(t, d.IsLocked(2))

	d.Lock(0)
	d.Unlock(3, 7)
	assert.Equal(t, []int{0, 1}, d.LockedParagraphs)
}

func TestSectionDraftHasBlocking(t *testing.T) {
	d := &SectionDraft{Warnings: []Warning{{Code: WarnNearLimit}}}
	assert.False(t, d.HasBlocking())
	d.Warnings = append(d.Warnings, Warning{Code: WarnOverLimit, Blocking: true})
	assert.True(t, d.HasBlocking())
}

func TestSectionDraftJSONKeepsOrder(t *testing.T) {
	in := SectionDraft{
		SectionName: "Need",
		Text:        "B [Beta, p.2]. A [Alpha, p.1].",
		WordCount:   2,
		Citations: []Citation{
			{DocumentID: "b", DocumentTitle: "Beta", PageNumber: 2},
			{DocumentID: "a", DocumentTitle: "Alpha", PageNumber: 1},
		},
		LockedParagraphs: []int{0, 2},
		ParagraphOwners:  []ParagraphOwner{OwnerUser, OwnerGenerated},
		Warnings:         []Warning{{Code: WarnUnverifiedClaim, Message: "dropped [Gamma, p.9]"}},
		GeneratedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out SectionDraft
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
	assert.NotContains(t, string(mustJSON(t, SectionDraft{})), "generated_at")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestNormalizeIndices(t *testing.T) {
	assert.Equal(t, []int{}, NormalizeIndices(nil))
	assert.Equal(t, []int{0, 2, 5}, NormalizeIndices([]int{5, 2, -1, 2, 0}))
}

func TestEditOverlayIndices(t *testing.T) {
	var nilOverlay *EditOverlay
	assert.Nil(t, nilOverlay.Indices())
	o := &EditOverlay{Paragraphs: map[int]string{4: "d", 1: "a"}}
	assert.Equal(t, []int{1, 4}, o.Indices())
}

func TestCitationMarkerAndKey(t *testing.T) {
	c := Citation{DocumentTitle: "Community  Needs Survey", PageNumber: 4}
	assert.Equal(t, "[Community  Needs Survey, p.4]", c.Marker())
	assert.Equal(t, CitationKey("community needs   SURVEY", 4), c.Key())
	assert.NotEqual(t, CitationKey("community needs survey", 5), c.Key())
}

func TestCitationFromChunk(t *testing.T) {
	ch := Chunk{ID: "c1", DocumentID: "d", DocumentTitle: "Doc", PageNumber: 2, Text: "  héllo world  ", Score: 0.7}

	got := CitationFromChunk(ch, 5)
	assert.Equal(t, Citation{
		DocumentID: "d", ChunkID: "c1", DocumentTitle: "Doc", PageNumber: 2,
		Snippet: "héllo...", RelevanceScore: 0.7,
	}, got)
	assert.Equal(t, "héllo world", CitationFromChunk(ch, 0).Snippet)
}

func TestBlueprintSection(t *testing.T) {
	bp := RequirementBlueprint{Sections: []SectionSpec{{Name: "Project Description"}, {Name: "Budget"}}}
	spec, ok := bp.Section("project description")
	assert.True(t, ok)
	assert.Equal(t, "Project Description", spec.Name)
	_, ok = bp.Section("Appendix")
	assert.False(t, ok)
	assert.Equal(t, []string{"Project Description", "Budget"}, bp.SectionNames())
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.3, cfg.Retrieval.MinRelevance)
	assert.Equal(t, 0.5, cfg.Retrieval.ConfidenceThreshold)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.SearchTimeout)
	assert.Equal(t, 0.7, cfg.Generation.Temperature)
	assert.Equal(t, 600, cfg.Generation.MaxTokens)
	assert.Equal(t, 3, cfg.Generation.MaxRetries)
	assert.Equal(t, 10.0, cfg.Quality.NearLimitPercent)

	cfg.Quality.SubjectiveTerms[0] = "changed"
	assert.NotEqual(t, "changed", DefaultPipelineConfig().Quality.SubjectiveTerms[0])
}
