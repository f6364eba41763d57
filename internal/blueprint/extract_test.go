// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blueprint

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

const markdownCall = `# Community Resilience Grant

Deadline: March 1, 2027

## Eligibility
- Registered nonprofit organizations
- Tribal governments

## Proposal Sections

### Project Description
Describe the project goals and the community need. Limit: up to 500 words.

### Budget Narrative (Optional)
Explain how requested funds will be used.

## Evaluation Criteria
- Community need (40 points)
- Feasibility (30%)
`

const plainCall = `RURAL HEALTH ACCESS PROGRAM
Program: Rural Health Access Fund
Application deadline: June 30, 2027

ELIGIBILITY
Applicants must be county health departments or clinics.

PROPOSAL SECTIONS
1. Statement of Need
Summarize the health access gap in your service area (maximum of 2,000 characters).
2. Work Plan
Present activities in a table. Not to exceed 3 pages.
3. Letters of Support (optional)
Attach letters from partners.

REVIEW CRITERIA
- Need: 50 points
- Work plan quality: 50 points
`

func extract(t *testing.T, text string) *types.RequirementBlueprint {
	t.Helper()
	bp, err := NewHeuristicExtractor(types.BlueprintConfig{}).Extract(context.Background(), text)
	require.NoError(t, err)
	return bp
}

func TestHeuristicExtract_MarkdownCall(t *testing.T) {
	bp := extract(t, markdownCall)

	require.Len(t, bp.Sections, 2)
	desc, budget := bp.Sections[0], bp.Sections[1]

	assert.Equal(t, "Project Description", desc.Name)
	assert.True(t, desc.Required)
	require.NotNil(t, desc.WordLimit)
	assert.Equal(t, 500, *desc.WordLimit)
	assert.Nil(t, desc.CharLimit)
	assert.Equal(t, types.FormatNarrative, desc.Format)
	assert.Contains(t, desc.Requirement, "community need")

	assert.Equal(t, "Budget Narrative", budget.Name)
	assert.False(t, budget.Required)
	assert.Nil(t, budget.WordLimit)

	assert.Equal(t, "Community Resilience Grant", bp.ProgramName)
	assert.Equal(t, "March 1, 2027", bp.Deadline)
	assert.Equal(t, []string{"Registered nonprofit organizations", "Tribal governments"}, bp.Eligibility)

	require.Len(t, bp.ScoringCriteria, 2)
	assert.Equal(t, "Community need", bp.ScoringCriteria[0].Criterion)
	require.NotNil(t, bp.ScoringCriteria[0].Weight)
	assert.Equal(t, 40.0, *bp.ScoringCriteria[0].Weight)
	require.NotNil(t, bp.ScoringCriteria[1].Weight)
	assert.Equal(t, 30.0, *bp.ScoringCriteria[1].Weight)
}

func TestHeuristicExtract_PlainTextCall(t *testing.T) {
	bp := extract(t, plainCall)

	require.Equal(t, []string{"Statement of Need", "Work Plan", "Letters of Support"}, bp.SectionNames())

	need := bp.Sections[0]
	require.NotNil(t, need.CharLimit)
	assert.Equal(t, 2000, *need.CharLimit)
	assert.Nil(t, need.WordLimit)

	plan := bp.Sections[1]
	require.NotNil(t, plan.PageLimit)
	assert.Equal(t, 3, *plan.PageLimit)
	assert.Equal(t, types.FormatTable, plan.Format)

	assert.False(t, bp.Sections[2].Required)

	assert.Equal(t, "Rural Health Access Fund", bp.ProgramName)
	assert.Equal(t, "June 30, 2027", bp.Deadline)
	assert.Len(t, bp.Eligibility, 1)
	require.Len(t, bp.ScoringCriteria, 2)
	assert.Equal(t, "Need", bp.ScoringCriteria[0].Criterion)
	assert.Equal(t, 50.0, *bp.ScoringCriteria[0].Weight)
}

func TestHeuristicExtract_PlainTitleWithIntro(t *testing.T) {
	text := `COMMUNITY GRANT PROGRAM

The foundation supports community-led projects that improve neighborhood
health and mobility. Applicants should read every section carefully before
preparing a proposal and contact program staff with questions.

1. Project Description (required, 500 words maximum)
Describe the project, the community need and the expected outcomes.

2. Budget Narrative (optional)
Explain how requested funds will be used.
`
	bp := extract(t, text)

	require.Equal(t, []string{"Project Description", "Budget Narrative"}, bp.SectionNames())
	assert.Equal(t, "Community Grant Program", bp.ProgramName)

	desc := bp.Sections[0]
	assert.True(t, desc.Required)
	require.NotNil(t, desc.WordLimit)
	assert.Equal(t, 500, *desc.WordLimit)
	assert.False(t, bp.Sections[1].Required)
}

func TestHeuristicExtract_NoContainerUsesAllSections(t *testing.T) {
	text := "## Project Summary\nOne page summary of the project, up to 250 words, describing goals.\n\n" +
		"## Evaluation Plan\nDescribe how outcomes will be measured and reported to the foundation.\n\n" +
		"## Contact\nQuestions go to grants@example.org before the deadline.\n"
	bp := extract(t, text)
	assert.Equal(t, []string{"Project Summary", "Evaluation Plan"}, bp.SectionNames())
}

func TestHeuristicExtract_AmbiguousLimitIsNil(t *testing.T) {
	text := "## Project Narrative\nProvide a summary of up to 250 words followed by a narrative of up to 1,500 words. " +
		strings.Repeat("Address community need, partners, and sustainability. ", 5)
	bp := extract(t, text)
	require.Len(t, bp.Sections, 1)
	assert.Nil(t, bp.Sections[0].WordLimit)
	assert.True(t, bp.Sections[0].Required)
}

func TestHeuristicExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "empty", text: "   \n", want: "empty"},
		{name: "too short", text: "## Narrative\nWrite things.", want: "too short"},
		{name: "no headings", text: strings.Repeat("applicants should describe the project in detail and explain the budget. ", 5), want: "no discernible section headers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHeuristicExtractor(types.BlueprintConfig{}).Extract(context.Background(), tt.text)
			var extErr *ExtractionError
			require.ErrorAs(t, err, &extErr)
			assert.Contains(t, extErr.Reason, tt.want)
		})
	}
}

func TestFindLimit(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"up to 500 words", 500},
		{"a maximum of 1,000 words", 1000},
		{"500 words maximum", 500},
		{"a 750-word limit applies", 750},
		{"Narrative (300 words)", 300},
		{"not to exceed 400 words", 400},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := findLimit(tt.text, wordLimitPatterns)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
	assert.Nil(t, findLimit("describe your work", wordLimitPatterns))
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Budget Narrative", cleanName("Budget Narrative (Optional)"))
	assert.Equal(t, "Project Description", cleanName("2. Project Description: up to 500 words"))
	assert.Equal(t, "Work Plan", cleanName("Section 3: Work Plan"))
}

// --- AI extractor ---

type stubCompleter struct {
	out   string
	err   error
	calls int
}

func (s *stubCompleter) Complete(_ context.Context, _ string, _ llm.Options) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestAIExtractor_UsesModelBlueprint(t *testing.T) {
	c := &stubCompleter{out: "```json\n" + `{"program_name":"Resilience","sections":[{"name":"Need","required":true,"word_limit":300,"char_limit":0,"format":"prose"}]}` + "\n```"}
	bp, err := NewAIExtractor(c, types.BlueprintConfig{}, nil).Extract(context.Background(), markdownCall)
	require.NoError(t, err)

	require.Len(t, bp.Sections, 1)
	assert.Equal(t, "Need", bp.Sections[0].Name)
	assert.Equal(t, 300, *bp.Sections[0].WordLimit)
	assert.Nil(t, bp.Sections[0].CharLimit)
	assert.Equal(t, types.FormatNarrative, bp.Sections[0].Format)
	assert.Equal(t, 1, c.calls)
}

func TestAIExtractor_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		c    *stubCompleter
	}{
		{name: "service error", c: &stubCompleter{err: errors.New("boom")}},
		{name: "not json", c: &stubCompleter{out: "I cannot help with that."}},
		{name: "no sections", c: &stubCompleter{out: `{"sections":[]}`}},
		{name: "negative limit", c: &stubCompleter{out: `{"sections":[{"name":"Need","word_limit":-5}]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp, err := NewAIExtractor(tt.c, types.BlueprintConfig{}, nil).Extract(context.Background(), markdownCall)
			require.NoError(t, err)
			assert.Equal(t, []string{"Project Description", "Budget Narrative"}, bp.SectionNames())
		})
	}
}

func TestAIExtractor_PrecheckSkipsModel(t *testing.T) {
	c := &stubCompleter{}
	_, err := NewAIExtractor(c, types.BlueprintConfig{}, nil).Extract(context.Background(), "")
	var extErr *ExtractionError
	assert.ErrorAs(t, err, &extErr)
	assert.Zero(t, c.calls)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(&types.RequirementBlueprint{}))
	assert.Error(t, Validate(&types.RequirementBlueprint{Sections: []types.SectionSpec{{Name: "A"}, {Name: "a"}}}))
	assert.NoError(t, Validate(&types.RequirementBlueprint{Sections: []types.SectionSpec{{Name: "A", WordLimit: types.IntPtr(10)}}}))
}

func TestNewSelectsExtractor(t *testing.T) {
	_, ok := New(types.BlueprintConfig{UseAI: true}, &stubCompleter{}, nil).(*AIExtractor)
	assert.True(t, ok)
	_, ok = New(types.BlueprintConfig{UseAI: true}, nil, nil).(*HeuristicExtractor)
	assert.True(t, ok)
}
