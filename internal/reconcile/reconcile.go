// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile merges a regenerated section with the user's locked
// paragraphs and pending edits. Paragraph ownership is tracked per index:
// locked paragraphs are copied from the prior draft verbatim no matter what
// the new generation produced, and an edited paragraph becomes locked.
package reconcile

import (
	"fmt"

	"github.com/pdiddy/proposal-engine/internal/markup"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Reconcile returns the merged draft. prior may be nil for a first
// generation. generated may be nil when only overlay is being applied, in
// which case prior's paragraphs are kept as they are. overlay may be nil.
//
// Word count and citations are always recomputed from the merged text.
// Markers in new or edited paragraphs are resolved against the union of
// prior and generated citations; those that match nothing are stripped and
// reported as unverified_claim. Paragraphs carried from prior are never
// altered.
func Reconcile(prior, generated *types.SectionDraft, overlay *types.EditOverlay) types.SectionDraft {
	if prior == nil {
		prior = &types.SectionDraft{}
	}
	out := types.SectionDraft{SectionName: prior.SectionName, GeneratedAt: prior.GeneratedAt}

	priorParas := markup.Paragraphs(prior.Text)
	pool := prior.Citations

	var paras []string
	var owners []types.ParagraphOwner
	var carried []bool
	var warnings []types.Warning

	if generated != nil {
		out.SectionName = generated.SectionName
		out.GeneratedAt = generated.GeneratedAt
		pool = markup.MergeCitations(prior.Citations, generated.Citations)
		warnings = append(warnings, generated.Warnings...)
		for _, p := range markup.Paragraphs(generated.Text) {
			res := markup.Resolve(p, pool)
			warnings = append(warnings, unverified(res.Dropped)...)
			// A paragraph left empty by the resolution pass keeps its
			// index until locks and edits are placed.
			if p = res.Text; markup.StripMarkers(p) == "" {
				p = ""
			}
			paras = append(paras, p)
			owners = append(owners, types.OwnerGenerated)
			carried = append(carried, false)
		}
	} else {
		warnings = append(warnings, prior.Warnings...)
		for i, p := range priorParas {
			paras = append(paras, p)
			owners = append(owners, ownerAt(prior, i))
			carried = append(carried, true)
		}
	}
	if out.SectionName == "" && overlay != nil {
		out.SectionName = overlay.SectionName
	}

	// Locked prior paragraphs win over whatever now sits at their index.
	locks := types.NormalizeIndices(prior.LockedParagraphs)
	for _, i := range locks {
		if i >= len(priorParas) {
			continue
		}
		for len(paras) < i {
			n := len(paras)
			paras = append(paras, priorParas[n])
			owners = append(owners, ownerAt(prior, n))
			carried = append(carried, true)
		}
		if i == len(paras) {
			paras = append(paras, priorParas[i])
			owners = append(owners, ownerAt(prior, i))
			carried = append(carried, true)
			continue
		}
		paras[i] = priorParas[i]
		owners[i] = ownerAt(prior, i)
		carried[i] = true
	}

	// User edits replace the paragraph at their index, or append when the
	// index is past the end, and lock the resulting position.
	var edited []int
	for _, i := range overlay.Indices() {
		text := markup.SingleParagraph(overlay.Paragraphs[i])
		res := markup.Resolve(text, pool)
		warnings = append(warnings, unverified(res.Dropped)...)
		if markup.StripMarkers(res.Text) == "" {
			continue
		}
		if i >= len(paras) {
			i = len(paras)
			paras = append(paras, "")
			owners = append(owners, "")
			carried = append(carried, false)
		}
		paras[i] = res.Text
		owners[i] = types.OwnerUser
		carried[i] = false
		edited = append(edited, i)
	}

	paras, owners, carried, edited = compact(paras, owners, carried, priorParas, prior, locks, edited)

	used := make([][]types.Citation, len(paras))
	for i, p := range paras {
		if !carried[i] {
			used[i], _ = markup.Collect(p, pool)
			continue
		}
		var unresolved []string
		used[i], unresolved = markup.Collect(p, pool)
		for _, raw := range unresolved {
			warnings = append(warnings, types.Warning{
				Code:    types.WarnUnverifiedClaim,
				Message: fmt.Sprintf("paragraph %d references %s, which matches no known citation", i, raw),
			})
		}
	}

	out.Text = markup.Join(paras)
	out.WordCount = markup.WordCount(out.Text)
	out.Citations = markup.MergeCitations(used...)
	out.LockedParagraphs = types.NormalizeIndices(append(append([]int(nil), locks...), edited...))
	out.ParagraphOwners = owners
	out.Warnings = warnings
	return out
}

// compact removes the empty placeholders left by the resolution pass. A
// placeholder below a locked or edited index is refilled from the prior
// draft so those paragraphs stay at their index; the rest are dropped and
// edited indices renumbered to match.
func compact(paras []string, owners []types.ParagraphOwner, carried []bool, priorParas []string, prior *types.SectionDraft, locks, edited []int) ([]string, []types.ParagraphOwner, []bool, []int) {
	anchor := -1
	for _, i := range locks {
		if i < len(paras) {
			anchor = max(anchor, i)
		}
	}
	for _, i := range edited {
		anchor = max(anchor, i)
	}

	index := make([]int, len(paras))
	var (
		outParas   []string
		outOwners  []types.ParagraphOwner
		outCarried []bool
	)
	for i, p := range paras {
		owner, wasCarried := owners[i], carried[i]
		if p == "" {
			if i >= anchor || i >= len(priorParas) {
				index[i] = -1
				continue
			}
			p, owner, wasCarried = priorParas[i], ownerAt(prior, i), true
		}
		index[i] = len(outParas)
		outParas = append(outParas, p)
		outOwners = append(outOwners, owner)
		outCarried = append(outCarried, wasCarried)
	}

	renumbered := make([]int, 0, len(edited))
	for _, i := range edited {
		if index[i] >= 0 {
			renumbered = append(renumbered, index[i])
		}
	}
	return outParas, outOwners, outCarried, renumbered
}

func ownerAt(d *types.SectionDraft, i int) types.ParagraphOwner {
	if i < len(d.ParagraphOwners) && d.ParagraphOwners[i] != "" {
		return d.ParagraphOwners[i]
	}
	return types.OwnerGenerated
}

func unverified(dropped []string) []types.Warning {
	out := make([]types.Warning, 0, len(dropped))
	for _, raw := range dropped {
		out = append(out, types.Warning{
			Code:    types.WarnUnverifiedClaim,
			Message: fmt.Sprintf("removed citation %s that matches no known source", raw),
		})
	}
	return out
}
