// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Document is a community-context document held by the chunk store.
type Document struct {
	ID      string    `json:"id" yaml:"id"`
	Title   string    `json:"title" yaml:"title"`
	Chunks  int       `json:"chunks" yaml:"chunks"`
	AddedAt time.Time `json:"added_at" yaml:"added_at"`
}

// SessionRecord is the persisted and exported form of a proposal session.
// Drafts follow blueprint order; sections never drafted are omitted.
type SessionRecord struct {
	ID            string               `json:"id" yaml:"id"`
	FundingCallID string               `json:"funding_call_id" yaml:"funding_call_id"`
	CreatedAt     time.Time            `json:"created_at" yaml:"created_at"`
	Blueprint     RequirementBlueprint `json:"blueprint" yaml:"blueprint"`
	Drafts        []SectionDraft       `json:"drafts" yaml:"drafts"`

	// Revisions holds the stored revision of each section that has one.
	// It is bookkeeping for optimistic writes and is never exported.
	Revisions map[string]uint64 `json:"-" yaml:"-"`
}
