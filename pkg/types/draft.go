// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"time"
)

// WarningCode classifies a warning attached to a SectionDraft.
type WarningCode string

const (
	WarnOverLimit            WarningCode = "over_limit"
	WarnNearLimit            WarningCode = "near_limit"
	WarnUnverifiedClaim      WarningCode = "unverified_claim"
	WarnNoGrounding          WarningCode = "no_grounding"
	WarnLowConfidence        WarningCode = "low_confidence"
	WarnStaleCitation        WarningCode = "stale_citation"
	WarnSubjectiveLanguage   WarningCode = "subjective_language"
	WarnRequiredSectionEmpty WarningCode = "required_section_empty"
	WarnRule                 WarningCode = "rule"
)

// Warning is a non-fatal finding attached to a draft. Blocking warnings
// prevent export until resolved but never prevent editing.
type Warning struct {
	Code     WarningCode `json:"code" yaml:"code"`
	Message  string      `json:"message" yaml:"message"`
	Blocking bool        `json:"blocking,omitempty" yaml:"blocking,omitempty"`
}

// ParagraphOwner records who authored the paragraph at an index.
type ParagraphOwner string

const (
	OwnerGenerated ParagraphOwner = "generated"
	OwnerUser      ParagraphOwner = "user"
)

// SectionDraft is the canonical text of one section within a proposal session.
type SectionDraft struct {
	SectionName string `json:"section_name" yaml:"section_name"`
	Text        string `json:"text" yaml:"text"`

	// WordCount is recomputed from Text whenever Text changes.
	WordCount int `json:"word_count" yaml:"word_count"`

	// Citations lists every citation referenced by a marker in Text,
	// in order of first appearance.
	Citations []Citation `json:"citations" yaml:"citations"`

	// LockedParagraphs holds sorted, unique paragraph indices that
	// regeneration must preserve verbatim.
	LockedParagraphs []int `json:"locked_paragraphs" yaml:"locked_paragraphs"`

	// ParagraphOwners tags each paragraph index with its author.
	ParagraphOwners []ParagraphOwner `json:"paragraph_owners,omitempty" yaml:"paragraph_owners,omitempty"`

	Warnings    []Warning `json:"warnings" yaml:"warnings"`
	GeneratedAt time.Time `json:"generated_at,omitzero" yaml:"generated_at,omitempty"`
}

// IsLocked reports whether paragraph i is locked.
func (d *SectionDraft) IsLocked(i int) bool {
	idx := sort.SearchInts(d.LockedParagraphs, i)
	return idx < len(d.LockedParagraphs) && d.LockedParagraphs[idx] == i
}

// Lock adds indices to the locked set, keeping it sorted and unique.
func (d *SectionDraft) Lock(indices ...int) {
	d.LockedParagraphs = NormalizeIndices(append(d.LockedParagraphs, indices...))
}

// Unlock removes indices from the locked set.
func (d *SectionDraft) Unlock(indices ...int) {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := d.LockedParagraphs[:0]
	for _, i := range d.LockedParagraphs {
		if !drop[i] {
			kept = append(kept, i)
		}
	}
	d.LockedParagraphs = kept
}

// HasBlocking reports whether any warning blocks export.
func (d *SectionDraft) HasBlocking() bool {
	for _, w := range d.Warnings {
		if w.Blocking {
			return true
		}
	}
	return false
}

// NormalizeIndices sorts indices, drops negatives and removes duplicates.
func NormalizeIndices(indices []int) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}

// EditOverlay holds user paragraph edits that have not yet been reconciled
// into the canonical draft.
type EditOverlay struct {
	SectionName string         `json:"section_name" yaml:"section_name"`
	Paragraphs  map[int]string `json:"paragraphs" yaml:"paragraphs"`
}

// Indices returns the overlay's paragraph indices in ascending order.
func (o *EditOverlay) Indices() []int {
	if o == nil {
		return nil
	}
	out := make([]int, 0, len(o.Paragraphs))
	for i := range o.Paragraphs {
		out = append(out, i)
	}
	return NormalizeIndices(out)
}
