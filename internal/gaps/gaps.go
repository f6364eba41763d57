// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gaps aggregates retrieval outcomes into gap reports ordered by
// the blueprint.
package gaps

import (
	"github.com/pdiddy/proposal-engine/internal/retrieve"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Analyze returns one GapReport per blueprint section whose retrieval did
// not produce satisfying grounding. Reports follow blueprint order.
// Required sections get blocking severity; optional ones are advisory.
// A section with no retrieval result at all is reported as no_grounding.
func Analyze(bp *types.RequirementBlueprint, results map[string]retrieve.Result) []types.GapReport {
	if bp == nil {
		return nil
	}
	var reports []types.GapReport
	for _, spec := range bp.Sections {
		res, ok := results[spec.Name]
		var gap types.GapReport
		switch {
		case !ok:
			gap = types.GapReport{
				SectionName:      spec.Name,
				UnmetRequirement: unmet(spec),
				Reason:           types.GapNoGrounding,
				Detail:           "section was not retrieved",
			}
		case res.Gap != nil:
			gap = *res.Gap
		default:
			continue
		}
		gap.Severity = Severity(spec)
		reports = append(reports, gap)
	}
	return reports
}

// Severity returns the gap severity implied by whether spec is required.
func Severity(spec types.SectionSpec) types.GapSeverity {
	if spec.Required {
		return types.SeverityBlocking
	}
	return types.SeverityAdvisory
}

// Blocking filters reports down to those that block export.
func Blocking(reports []types.GapReport) []types.GapReport {
	var out []types.GapReport
	for _, r := range reports {
		if r.Severity == types.SeverityBlocking {
			out = append(out, r)
		}
	}
	return out
}

func unmet(spec types.SectionSpec) string {
	if spec.Requirement != "" {
		return spec.Requirement
	}
	return spec.Name
}
