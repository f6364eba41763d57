// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package proposal

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/internal/markup"
	"github.com/pdiddy/proposal-engine/internal/retrieve"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

func testBlueprint() types.RequirementBlueprint {
	return types.RequirementBlueprint{
		FundingCallID: "call-1",
		ProgramName:   "Community Mobility Fund",
		Sections: []types.SectionSpec{
			{Name: "Project Description", Required: true, WordLimit: types.IntPtr(500), Requirement: "Describe the project."},
			{Name: "Budget Narrative", Required: false},
		},
	}
}

func draftFor(name, text string) types.SectionDraft {
	return types.SectionDraft{SectionName: name, Text: text, WordCount: markup.WordCount(text)}
}

func TestNewSession(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	_, err := uuid.Parse(s.ID)
	assert.NoError(t, err)
	assert.False(t, s.CreatedAt.IsZero())
	_, ok := s.Draft("Project Description")
	assert.False(t, ok)
}

func TestSession_SingleWriterPerSection(t *testing.T) {
	s := NewSession("call-1", testBlueprint())

	t1, prior, err := s.BeginGeneration("project description")
	require.NoError(t, err)
	assert.Nil(t, prior)
	assert.Equal(t, "Project Description", t1.Section)
	assert.True(t, s.InFlight("Project Description"))

	_, _, err = s.BeginGeneration("Project Description")
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	// Other sections are independent.
	t2, _, err := s.BeginGeneration("Budget Narrative")
	require.NoError(t, err)
	s.Abort(t2)
	assert.False(t, s.InFlight("Budget Narrative"))

	require.NoError(t, s.Commit(t1, draftFor("", "First draft.")))
	assert.False(t, s.InFlight("Project Description"))

	d, ok := s.Draft("Project Description")
	require.True(t, ok)
	assert.Equal(t, "Project Description", d.SectionName)
	assert.Equal(t, "First draft.", d.Text)

	_, prior, err = s.BeginGeneration("Project Description")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "First draft.", prior.Text)
}

func TestSession_StaleResultDiscarded(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	ticket, _, err := s.BeginGeneration("Project Description")
	require.NoError(t, err)

	_, err = s.SaveEdit(types.EditOverlay{SectionName: "Project Description", Paragraphs: map[int]string{0: "User text."}}, nil)
	require.NoError(t, err)

	err = s.Commit(ticket, draftFor("Project Description", "Late generated text."))
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.False(t, s.InFlight("Project Description"))

	d, _ := s.Draft("Project Description")
	assert.Equal(t, "User text.", d.Text)
	assert.Equal(t, []int{0}, d.LockedParagraphs)
}

func TestSession_LockChangeMakesGenerationStale(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	t1, _, _ := s.BeginGeneration("Project Description")
	require.NoError(t, s.Commit(t1, draftFor("", "One.\n\nTwo.")))

	t2, _, _ := s.BeginGeneration("Project Description")
	require.NoError(t, s.Lock("Project Description", 1))
	assert.ErrorIs(t, s.Commit(t2, draftFor("", "Other.")), ErrStaleResult)
}

func TestSession_Locks(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	assert.ErrorIs(t, s.Lock("Project Description", 0), ErrNoDraft)

	tk, _, _ := s.BeginGeneration("Project Description")
	require.NoError(t, s.Commit(tk, draftFor("", "One.\n\nTwo.\n\nThree.")))

	require.NoError(t, s.Lock("Project Description", 2, 0, 2))
	d, _ := s.Draft("Project Description")
	assert.Equal(t, []int{0, 2}, d.LockedParagraphs)

	assert.ErrorIs(t, s.Lock("Project Description", 3), ErrParagraphRange)
	assert.ErrorIs(t, s.Lock("Project Description", -1), ErrParagraphRange)

	require.NoError(t, s.Unlock("Project Description", 0))
	d, _ = s.Draft("Project Description")
	assert.Equal(t, []int{2}, d.LockedParagraphs)

	require.NoError(t, s.ClearLocks("Project Description"))
	d, _ = s.Draft("Project Description")
	assert.Empty(t, d.LockedParagraphs)

	assert.ErrorIs(t, s.Lock("Nope", 0), ErrUnknownSection)
}

func TestSession_SaveEditValidation(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	tests := []struct {
		name    string
		overlay types.EditOverlay
		want    error
	}{
		{name: "unknown section", overlay: types.EditOverlay{SectionName: "Nope", Paragraphs: map[int]string{0: "x"}}, want: ErrUnknownSection},
		{name: "no paragraphs", overlay: types.EditOverlay{SectionName: "Budget Narrative"}, want: ErrEmptyEdit},
		{name: "blank text", overlay: types.EditOverlay{SectionName: "Budget Narrative", Paragraphs: map[int]string{0: "  "}}, want: ErrEmptyEdit},
		{name: "marker only", overlay: types.EditOverlay{SectionName: "Budget Narrative", Paragraphs: map[int]string{0: "[Survey, p.2]"}}, want: ErrEmptyEdit},
		{name: "negative index", overlay: types.EditOverlay{SectionName: "Budget Narrative", Paragraphs: map[int]string{-1: "x"}}, want: ErrParagraphRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SaveEdit(tt.overlay, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSession_SaveEditRunsRefresher(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	called := false
	d, err := s.SaveEdit(types.EditOverlay{SectionName: "budget narrative", Paragraphs: map[int]string{0: "Costs."}},
		func(spec types.SectionSpec, d *types.SectionDraft) {
			called = true
			assert.Equal(t, "Budget Narrative", spec.Name)
			d.Warnings = append(d.Warnings, types.Warning{Code: types.WarnRule, Message: "checked"})
		})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "Budget Narrative", d.SectionName)
	stored, _ := s.Draft("Budget Narrative")
	assert.Equal(t, d, stored)
}

func TestSession_DraftIsCopy(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	tk, _, _ := s.BeginGeneration("Project Description")
	d := draftFor("", "One.")
	d.Citations = []types.Citation{{DocumentTitle: "Survey", PageNumber: 1}}
	require.NoError(t, s.Commit(tk, d))

	got, _ := s.Draft("Project Description")
	got.Citations[0].DocumentTitle = "Changed"
	again, _ := s.Draft("Project Description")
	assert.Equal(t, "Survey", again.Citations[0].DocumentTitle)
}

func TestSession_RecordRoundTrip(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	tk, _, _ := s.BeginGeneration("Budget Narrative")
	require.NoError(t, s.Commit(tk, draftFor("", "Budget text.")))
	tk, _, _ = s.BeginGeneration("Project Description")
	require.NoError(t, s.Commit(tk, draftFor("", "Description text.")))

	rec := s.Record()
	require.Len(t, rec.Drafts, 2)
	assert.Equal(t, "Project Description", rec.Drafts[0].SectionName)
	assert.Equal(t, "Budget Narrative", rec.Drafts[1].SectionName)

	restored := FromRecord(rec)
	assert.Equal(t, s.ID, restored.ID)
	assert.Equal(t, rec, restored.Record())
}

func TestSession_Retrievals(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	s.SetRetrieval(retrieve.Result{SectionName: "project description"})
	s.SetRetrieval(retrieve.Result{SectionName: "Unknown"})
	got := s.Retrievals()
	require.Len(t, got, 1)
	_, ok := got["Project Description"]
	assert.True(t, ok)
}

type write struct {
	section    string
	position   int
	base, next uint64
}

// memWriter accepts a write only while the stored revision matches base.
type memWriter struct {
	revisions map[string]uint64
	writes    []write
}

func (m *memWriter) WriteDraft(_ context.Context, _ string, position int, base, next uint64, d types.SectionDraft, _ string) error {
	if m.revisions[d.SectionName] != base {
		return ErrStaleResult
	}
	m.revisions[d.SectionName] = next
	m.writes = append(m.writes, write{d.SectionName, position, base, next})
	return nil
}

func TestSession_PersistWritesChangedSectionsOnly(t *testing.T) {
	rec := types.SessionRecord{
		ID:        "session-1",
		Blueprint: testBlueprint(),
		Drafts: []types.SectionDraft{
			draftFor("Project Description", "One.\n\nTwo."),
			draftFor("Budget Narrative", "Costs."),
		},
		Revisions: map[string]uint64{"Project Description": 3, "Budget Narrative": 1},
	}
	s := FromRecord(rec)
	w := &memWriter{revisions: map[string]uint64{"Project Description": 3, "Budget Narrative": 1}}

	require.NoError(t, s.Persist(context.Background(), w))
	assert.Empty(t, w.writes)

	require.NoError(t, s.Lock("Budget Narrative", 0))
	require.NoError(t, s.Persist(context.Background(), w))
	assert.Equal(t, []write{{"Budget Narrative", 1, 1, 2}}, w.writes)

	// Already written; nothing left to persist.
	require.NoError(t, s.Persist(context.Background(), w))
	assert.Len(t, w.writes, 1)
	assert.Equal(t, map[string]uint64{"Project Description": 3, "Budget Narrative": 2}, s.Record().Revisions)
}

func TestSession_PersistReportsConflicts(t *testing.T) {
	rec := types.SessionRecord{
		ID:        "session-1",
		Blueprint: testBlueprint(),
		Drafts: []types.SectionDraft{
			draftFor("Project Description", "One."),
			draftFor("Budget Narrative", "Costs."),
		},
		Revisions: map[string]uint64{"Project Description": 1, "Budget Narrative": 1},
	}
	s := FromRecord(rec)
	// Another writer moved Project Description on.
	w := &memWriter{revisions: map[string]uint64{"Project Description": 2, "Budget Narrative": 1}}

	require.NoError(t, s.Lock("Project Description", 0))
	require.NoError(t, s.Lock("Budget Narrative", 0))
	err := s.Persist(context.Background(), w)
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.ErrorContains(t, err, "Project Description")
	assert.Equal(t, []write{{"Budget Narrative", 1, 1, 2}}, w.writes)
}

func TestSession_UnchangedUpdateKeepsGenerationCurrent(t *testing.T) {
	s := NewSession("call-1", testBlueprint())
	t1, _, _ := s.BeginGeneration("Project Description")
	require.NoError(t, s.Commit(t1, draftFor("", "One.")))

	t2, _, _ := s.BeginGeneration("Project Description")
	require.NoError(t, s.Unlock("Project Description", 0))
	assert.NoError(t, s.Commit(t2, draftFor("", "Two.")))
}
