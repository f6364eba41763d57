// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

type fakeDocs struct {
	present map[string]bool
	err     error
	calls   int
}

func (f *fakeDocs) DocumentExists(_ context.Context, id string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.present[id], nil
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func codes(ws []types.Warning) []types.WarningCode {
	var out []types.WarningCode
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

func newChecker(t *testing.T, docs DocumentChecker, cfg types.QualityConfig) *Checker {
	t.Helper()
	c, err := New(docs, cfg, nil)
	require.NoError(t, err)
	return c
}

func TestCheck_OverLimitCompliance(t *testing.T) {
	tests := []struct {
		name      string
		required  bool
		compliant bool
	}{
		{name: "required section", required: true, compliant: false},
		{name: "optional section", required: false, compliant: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := types.SectionSpec{Name: "Project Description", Required: tt.required, WordLimit: types.IntPtr(500)}
			draft := types.SectionDraft{SectionName: spec.Name, Text: words(501)}

			rep := newChecker(t, nil, types.QualityConfig{}).Check(context.Background(), draft, spec)

			require.Contains(t, codes(rep.Warnings), types.WarnOverLimit)
			assert.Equal(t, tt.compliant, rep.BlueprintCompliant)
			assert.Equal(t, tt.required, rep.Warnings[0].Blocking)
		})
	}
}

func TestCheckLimits(t *testing.T) {
	tests := []struct {
		name string
		text string
		spec types.SectionSpec
		want []types.WarningCode
	}{
		{name: "under", text: words(100), spec: types.SectionSpec{WordLimit: types.IntPtr(500)}},
		{name: "near", text: words(460), spec: types.SectionSpec{WordLimit: types.IntPtr(500)}, want: []types.WarningCode{types.WarnNearLimit}},
		{name: "exactly at limit", text: words(500), spec: types.SectionSpec{WordLimit: types.IntPtr(500)}, want: []types.WarningCode{types.WarnNearLimit}},
		{name: "over", text: words(501), spec: types.SectionSpec{WordLimit: types.IntPtr(500)}, want: []types.WarningCode{types.WarnOverLimit}},
		{name: "chars over", text: "abcdefghijk", spec: types.SectionSpec{CharLimit: types.IntPtr(10)}, want: []types.WarningCode{types.WarnOverLimit}},
		{name: "pages over", text: words(501), spec: types.SectionSpec{PageLimit: types.IntPtr(1)}, want: []types.WarningCode{types.WarnOverLimit}},
		{name: "no limits", text: words(5000), spec: types.SectionSpec{}},
		{name: "markers not counted", text: words(500) + " [Survey, p.2]", spec: types.SectionSpec{WordLimit: types.IntPtr(500)}, want: []types.WarningCode{types.WarnNearLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckLimits(tt.text, tt.spec, types.QualityConfig{})
			assert.Equal(t, tt.want, codes(got))
		})
	}
}

func TestCheck_StaleCitations(t *testing.T) {
	docs := &fakeDocs{present: map[string]bool{"survey": true}}
	draft := types.SectionDraft{
		Text: "Need is high [Survey, p.2]. Growth continues [Old Report, p.1]. Again [Old Report, p.3].",
		Citations: []types.Citation{
			{DocumentID: "survey", DocumentTitle: "Survey", PageNumber: 2},
			{DocumentID: "old", DocumentTitle: "Old Report", PageNumber: 1},
			{DocumentID: "old", DocumentTitle: "Old Report", PageNumber: 3},
		},
	}

	rep := newChecker(t, docs, types.QualityConfig{}).Check(context.Background(), draft, types.SectionSpec{Name: "Need"})

	assert.Equal(t, []types.WarningCode{types.WarnStaleCitation}, codes(rep.Warnings))
	assert.False(t, rep.Warnings[0].Blocking)
	assert.True(t, rep.BlueprintCompliant)
	assert.Equal(t, 2, docs.calls)
}

func TestCheck_StaleCitationLookupError(t *testing.T) {
	docs := &fakeDocs{err: errors.New("db closed")}
	draft := types.SectionDraft{
		Text:      "Claim [Survey, p.2].",
		Citations: []types.Citation{{DocumentID: "survey", DocumentTitle: "Survey", PageNumber: 2}},
	}
	rep := newChecker(t, docs, types.QualityConfig{}).Check(context.Background(), draft, types.SectionSpec{Name: "Need"})
	assert.Empty(t, rep.Warnings)
}

func TestCheck_SubjectiveLanguage(t *testing.T) {
	draft := types.SectionDraft{Text: "This Revolutionary program is a perfect fit. Performance improved."}
	rep := newChecker(t, nil, types.QualityConfig{}).Check(context.Background(), draft, types.SectionSpec{Name: "Need"})

	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, types.WarnSubjectiveLanguage, rep.Warnings[0].Code)
	assert.Contains(t, rep.Warnings[0].Message, "revolutionary")
	assert.Contains(t, rep.Warnings[0].Message, "perfect")
	assert.True(t, rep.BlueprintCompliant)
}

func TestCheck_SubjectiveTermsConfigurable(t *testing.T) {
	draft := types.SectionDraft{Text: "A revolutionary and stellar effort."}
	rep := newChecker(t, nil, types.QualityConfig{SubjectiveTerms: []string{"stellar"}}).
		Check(context.Background(), draft, types.SectionSpec{})
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "subjective language: stellar", rep.Warnings[0].Message)
}

func TestCheck_RequiredEmpty(t *testing.T) {
	c := newChecker(t, nil, types.QualityConfig{})

	rep := c.Check(context.Background(), types.SectionDraft{Text: "  [Survey, p.2] "}, types.SectionSpec{Name: "Budget", Required: true})
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, types.WarnRequiredSectionEmpty, rep.Warnings[0].Code)
	assert.True(t, rep.Warnings[0].Blocking)
	assert.False(t, rep.BlueprintCompliant)

	rep = c.Check(context.Background(), types.SectionDraft{}, types.SectionSpec{Name: "Appendix"})
	assert.Empty(t, rep.Warnings)
	assert.True(t, rep.BlueprintCompliant)
}

func TestCheck_CustomRules(t *testing.T) {
	cfg := types.QualityConfig{Rules: []types.QualityRule{
		{Name: "cited", Expr: "required && citations == 0", Message: "required sections need at least one citation", Blocking: true},
		{Name: "short", Expr: "word_count < 5"},
	}}
	c := newChecker(t, nil, cfg)

	rep := c.Check(context.Background(), types.SectionDraft{Text: "Too short."}, types.SectionSpec{Name: "Need", Required: true})
	require.Len(t, rep.Warnings, 2)
	assert.Equal(t, "required sections need at least one citation", rep.Warnings[0].Message)
	assert.True(t, rep.Warnings[0].Blocking)
	assert.Equal(t, "rule short failed", rep.Warnings[1].Message)
	assert.False(t, rep.BlueprintCompliant)
}

func TestNew_InvalidRule(t *testing.T) {
	tests := []struct {
		name string
		rule types.QualityRule
	}{
		{name: "empty", rule: types.QualityRule{Name: "x"}},
		{name: "syntax", rule: types.QualityRule{Name: "x", Expr: "word_count >"}},
		{name: "unknown variable", rule: types.QualityRule{Name: "x", Expr: "pages > 2"}},
		{name: "not bool", rule: types.QualityRule{Name: "x", Expr: "word_count + 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, types.QualityConfig{Rules: []types.QualityRule{tt.rule}}, nil)
			assert.Error(t, err)
		})
	}
}

func TestApply_ReplacesOwnedWarnings(t *testing.T) {
	draft := types.SectionDraft{Warnings: []types.Warning{
		{Code: types.WarnUnverifiedClaim, Message: "dropped [Made Up, p.9]"},
		{Code: types.WarnOverLimit, Message: "stale count"},
	}}
	Apply(&draft, Report{Warnings: []types.Warning{{Code: types.WarnNearLimit, Message: "close"}}})
	assert.Equal(t, []types.WarningCode{types.WarnUnverifiedClaim, types.WarnNearLimit}, codes(draft.Warnings))
}
