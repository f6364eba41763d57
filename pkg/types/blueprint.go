// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// SectionFormat is the layout hint a funding call gives for a section.
type SectionFormat string

const (
	FormatNarrative SectionFormat = "narrative"
	FormatBullet    SectionFormat = "bullet"
	FormatTable     SectionFormat = "table"
)

// SectionSpec describes one section the funding call asks applicants to write.
// Limits are nil when the call does not state them or states them ambiguously.
type SectionSpec struct {
	// Name is the section heading as it appears in the funding call.
	Name string `json:"name" yaml:"name"`

	// Required is false only when the call marks the section optional.
	Required bool `json:"required" yaml:"required"`

	// WordLimit is the maximum number of words, if stated.
	WordLimit *int `json:"word_limit,omitempty" yaml:"word_limit,omitempty"`

	// CharLimit is the maximum number of characters, if stated.
	CharLimit *int `json:"char_limit,omitempty" yaml:"char_limit,omitempty"`

	// PageLimit is the maximum number of pages, if stated.
	PageLimit *int `json:"page_limit,omitempty" yaml:"page_limit,omitempty"`

	// Format is the expected layout of the section body.
	Format SectionFormat `json:"format" yaml:"format"`

	// ScoringWeight is the reviewer weight attached to this section, if stated.
	ScoringWeight *float64 `json:"scoring_weight,omitempty" yaml:"scoring_weight,omitempty"`

	// Requirement is the free text the call gives under the section heading.
	Requirement string `json:"requirement,omitempty" yaml:"requirement,omitempty"`
}

// ScoringCriterion is one reviewer criterion with an optional weight.
type ScoringCriterion struct {
	Criterion string   `json:"criterion" yaml:"criterion"`
	Weight    *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// RequirementBlueprint is the structured checklist derived from a funding call.
// It is immutable once extracted; replacing the funding call produces a new one.
type RequirementBlueprint struct {
	// FundingCallID identifies the source document.
	FundingCallID string `json:"funding_call_id,omitempty" yaml:"funding_call_id,omitempty"`

	// ProgramName is the funding program's name, if the call states one.
	ProgramName string `json:"program_name,omitempty" yaml:"program_name,omitempty"`

	// Deadline is the submission deadline as written in the call.
	Deadline string `json:"deadline,omitempty" yaml:"deadline,omitempty"`

	// Sections lists the sections in the order the call presents them.
	Sections []SectionSpec `json:"sections" yaml:"sections"`

	// Eligibility lists free-text eligibility constraints.
	Eligibility []string `json:"eligibility" yaml:"eligibility"`

	// ScoringCriteria lists the reviewer criteria.
	ScoringCriteria []ScoringCriterion `json:"scoring_criteria" yaml:"scoring_criteria"`
}

// Section returns the spec whose name matches name, ignoring case.
func (b *RequirementBlueprint) Section(name string) (SectionSpec, bool) {
	for _, s := range b.Sections {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return SectionSpec{}, false
}

// SectionNames returns the section names in blueprint order.
func (b *RequirementBlueprint) SectionNames() []string {
	names := make([]string, len(b.Sections))
	for i, s := range b.Sections {
		names[i] = s.Name
	}
	return names
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
