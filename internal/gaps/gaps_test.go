// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gaps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/internal/retrieve"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

func blueprint() *types.RequirementBlueprint {
	return &types.RequirementBlueprint{
		Sections: []types.SectionSpec{
			{Name: "Project Description", Required: true, Requirement: "Describe the project."},
			{Name: "Budget Narrative", Required: false},
			{Name: "Evaluation Plan", Required: true},
		},
	}
}

func TestAnalyze(t *testing.T) {
	results := map[string]retrieve.Result{
		"Project Description": {
			SectionName: "Project Description",
			Gap:         &types.GapReport{SectionName: "Project Description", UnmetRequirement: "Describe the project.", Reason: types.GapLowConfidence},
		},
		"Budget Narrative": {
			SectionName: "Budget Narrative",
			Gap:         &types.GapReport{SectionName: "Budget Narrative", UnmetRequirement: "Budget Narrative", Reason: types.GapNoGrounding},
		},
		"Evaluation Plan": {
			SectionName: "Evaluation Plan",
			Citations:   []types.Citation{{DocumentTitle: "Survey", PageNumber: 2, RelevanceScore: 0.8}},
		},
	}

	reports := Analyze(blueprint(), results)
	require.Len(t, reports, 2)

	assert.Equal(t, "Project Description", reports[0].SectionName)
	assert.Equal(t, types.GapLowConfidence, reports[0].Reason)
	assert.Equal(t, types.SeverityBlocking, reports[0].Severity)

	assert.Equal(t, "Budget Narrative", reports[1].SectionName)
	assert.Equal(t, types.GapNoGrounding, reports[1].Reason)
	assert.Equal(t, types.SeverityAdvisory, reports[1].Severity)

	assert.Len(t, Blocking(reports), 1)
}

func TestAnalyze_MissingResult(t *testing.T) {
	reports := Analyze(blueprint(), map[string]retrieve.Result{})
	require.Len(t, reports, 3)
	assert.Equal(t, "Describe the project.", reports[0].UnmetRequirement)
	assert.Equal(t, "Budget Narrative", reports[1].UnmetRequirement)
	for _, r := range reports {
		assert.Equal(t, types.GapNoGrounding, r.Reason)
	}
}

func TestAnalyze_DoesNotMutateResults(t *testing.T) {
	gap := &types.GapReport{SectionName: "Project Description", Reason: types.GapNoGrounding}
	results := map[string]retrieve.Result{"Project Description": {Gap: gap}}
	Analyze(blueprint(), results)
	assert.Empty(t, gap.Severity)
}

func TestAnalyze_NilBlueprint(t *testing.T) {
	assert.Nil(t, Analyze(nil, nil))
}
