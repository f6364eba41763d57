// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package proposal holds the per-session state of a proposal being drafted
// and orchestrates retrieval, generation, reconciliation and checking for
// its sections.
//
// Each section has a single writer. A generation takes a ticket carrying
// the section's sequence number; any user edit or lock change bumps the
// number, and a ticket whose number no longer matches is discarded at
// commit time instead of overwriting newer state.
//
// Sessions shared between processes go through a Ledger. Each section also
// remembers the revision last read from or written to the ledger, and
// writes are accepted only while the ledger still holds that revision.
package proposal

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/proposal-engine/internal/markup"
	"github.com/pdiddy/proposal-engine/internal/reconcile"
	"github.com/pdiddy/proposal-engine/internal/retrieve"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

var (
	// ErrGenerationInProgress rejects a second generation for a section
	// whose first has not completed.
	ErrGenerationInProgress = types.ErrGenerationInProgress

	// ErrStaleResult reports a generation discarded because the section
	// changed while it was outstanding.
	ErrStaleResult = types.ErrStaleResult

	// ErrUnknownSection is returned for a name not in the blueprint.
	ErrUnknownSection = errors.New("unknown section")

	// ErrParagraphRange is returned when a lock names a paragraph the
	// draft does not have.
	ErrParagraphRange = errors.New("paragraph index out of range")

	// ErrEmptyEdit rejects an overlay entry with no text.
	ErrEmptyEdit = errors.New("edit text is empty")

	// ErrNoDraft is returned when a section has not been drafted yet.
	ErrNoDraft = errors.New("section has no draft")
)

// DraftWriter persists a section draft as revision next, provided the
// stored revision is still base. A write that lost the race fails with an
// error wrapping ErrStaleResult.
type DraftWriter interface {
	WriteDraft(ctx context.Context, sessionID string, position int, base, next uint64, d types.SectionDraft, lease string) error
}

// Ledger extends DraftWriter with a generation lease per section, so that
// single-writer generation holds across processes sharing one store.
type Ledger interface {
	DraftWriter
	ClaimSection(ctx context.Context, sessionID, section string, revision uint64) (lease string, err error)
	ReleaseSection(ctx context.Context, sessionID, section, lease string) error
}

// Ticket identifies one outstanding generation. Base is the section's
// persisted revision when the ticket was issued.
type Ticket struct {
	Section string
	Seq     uint64
	Base    uint64
}

// persistFunc writes a committed draft. position is the section's index
// in the blueprint.
type persistFunc func(position int, base, next uint64, d types.SectionDraft) error

type slot struct {
	draft     *types.SectionDraft
	seq       uint64
	base      uint64
	inFlight  bool
	retrieval *retrieve.Result
}

// Session is one proposal being drafted against one funding call.
type Session struct {
	ID            string
	FundingCallID string
	Blueprint     types.RequirementBlueprint
	CreatedAt     time.Time

	mu    sync.Mutex
	slots map[string]*slot
}

// NewSession starts a session for bp with a fresh ID.
func NewSession(fundingCallID string, bp types.RequirementBlueprint) *Session {
	return &Session{
		ID:            uuid.NewString(),
		FundingCallID: fundingCallID,
		Blueprint:     bp,
		CreatedAt:     time.Now().UTC(),
		slots:         make(map[string]*slot),
	}
}

// FromRecord restores a session persisted with Record.
func FromRecord(rec types.SessionRecord) *Session {
	s := &Session{
		ID:            rec.ID,
		FundingCallID: rec.FundingCallID,
		Blueprint:     rec.Blueprint,
		CreatedAt:     rec.CreatedAt,
		slots:         make(map[string]*slot),
	}
	for _, d := range rec.Drafts {
		spec, ok := s.Blueprint.Section(d.SectionName)
		if !ok {
			continue
		}
		d.SectionName = spec.Name
		s.slot(spec.Name).draft = &d
	}
	for name, rev := range rec.Revisions {
		spec, ok := s.Blueprint.Section(name)
		if !ok {
			continue
		}
		sl := s.slot(spec.Name)
		sl.seq, sl.base = rev, rev
	}
	return s
}

// Record returns a copy of the session's persistent state.
func (s *Session) Record() types.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := types.SessionRecord{
		ID:            s.ID,
		FundingCallID: s.FundingCallID,
		CreatedAt:     s.CreatedAt,
		Blueprint:     s.Blueprint,
	}
	for _, spec := range s.Blueprint.Sections {
		sl, ok := s.slots[spec.Name]
		if !ok {
			continue
		}
		if sl.draft != nil {
			rec.Drafts = append(rec.Drafts, copyDraft(sl.draft))
		}
		if sl.base > 0 {
			if rec.Revisions == nil {
				rec.Revisions = make(map[string]uint64)
			}
			rec.Revisions[spec.Name] = sl.base
		}
	}
	return rec
}

// Spec resolves name, ignoring case, to its blueprint SectionSpec.
func (s *Session) Spec(name string) (types.SectionSpec, error) {
	spec, ok := s.Blueprint.Section(name)
	if !ok {
		return types.SectionSpec{}, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	return spec, nil
}

// slot returns the slot for a canonical section name. Caller holds mu or
// has exclusive access.
func (s *Session) slot(name string) *slot {
	sl, ok := s.slots[name]
	if !ok {
		sl = &slot{}
		s.slots[name] = sl
	}
	return sl
}

// Draft returns a copy of the current draft for a section.
func (s *Session) Draft(name string) (types.SectionDraft, bool) {
	spec, err := s.Spec(name)
	if err != nil {
		return types.SectionDraft{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[spec.Name]
	if !ok || sl.draft == nil {
		return types.SectionDraft{}, false
	}
	return copyDraft(sl.draft), true
}

// Drafts returns copies of every existing draft keyed by section name.
func (s *Session) Drafts() map[string]types.SectionDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.SectionDraft, len(s.slots))
	for name, sl := range s.slots {
		if sl.draft != nil {
			out[name] = copyDraft(sl.draft)
		}
	}
	return out
}

// BeginGeneration reserves the section for one generation and returns the
// ticket plus a copy of the current draft (nil if none exists yet).
func (s *Session) BeginGeneration(name string) (Ticket, *types.SectionDraft, error) {
	spec, err := s.Spec(name)
	if err != nil {
		return Ticket{}, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slot(spec.Name)
	if sl.inFlight {
		return Ticket{}, nil, fmt.Errorf("section %q: %w", spec.Name, ErrGenerationInProgress)
	}
	sl.inFlight = true
	var prior *types.SectionDraft
	if sl.draft != nil {
		d := copyDraft(sl.draft)
		prior = &d
	}
	return Ticket{Section: spec.Name, Seq: sl.seq, Base: sl.base}, prior, nil
}

// Commit stores draft as the section's result for t. If the section changed
// since t was issued the draft is dropped and ErrStaleResult returned.
// Either way the section is released for the next generation.
func (s *Session) Commit(t Ticket, draft types.SectionDraft) error {
	return s.commit(t, draft, nil)
}

// commit is Commit with an optional persist step. persist runs with the
// session locked; if it fails nothing is stored in memory either.
func (s *Session) commit(t Ticket, draft types.SectionDraft, persist persistFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slot(t.Section)
	sl.inFlight = false
	if sl.seq != t.Seq {
		return fmt.Errorf("section %q: %w", t.Section, ErrStaleResult)
	}
	draft.SectionName = t.Section
	next := t.Seq + 1
	if persist != nil {
		if err := persist(s.position(t.Section), sl.base, next, draft); err != nil {
			return fmt.Errorf("section %q: %w", t.Section, err)
		}
		sl.base = next
	}
	sl.draft = &draft
	sl.seq = next
	return nil
}

// Persist writes every section changed since it was loaded or last
// persisted. Sections are written independently; a section another
// writer has changed in the meantime is reported with ErrStaleResult and
// the rest are still written.
func (s *Session) Persist(ctx context.Context, w DraftWriter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i, spec := range s.Blueprint.Sections {
		sl, ok := s.slots[spec.Name]
		if !ok || sl.draft == nil || sl.seq == sl.base {
			continue
		}
		if err := w.WriteDraft(ctx, s.ID, i, sl.base, sl.seq, copyDraft(sl.draft), ""); err != nil {
			errs = append(errs, fmt.Errorf("section %q: %w", spec.Name, err))
			continue
		}
		sl.base = sl.seq
	}
	return errors.Join(errs...)
}

// position returns the blueprint index of a canonical section name.
func (s *Session) position(name string) int {
	for i, spec := range s.Blueprint.Sections {
		if spec.Name == name {
			return i
		}
	}
	return len(s.Blueprint.Sections)
}

// Abort releases the section without storing anything.
func (s *Session) Abort(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot(t.Section).inFlight = false
}

// InFlight reports whether a generation is outstanding for the section.
func (s *Session) InFlight(name string) bool {
	spec, err := s.Spec(name)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[spec.Name]
	return ok && sl.inFlight
}

// Refresher recomputes derived state, such as quality warnings, on a draft
// that has just changed. It runs with the session locked.
type Refresher func(spec types.SectionSpec, d *types.SectionDraft)

// SaveEdit reconciles overlay into the section's draft immediately. Edited
// paragraphs become locked. Any outstanding generation for the section
// will be discarded when it completes.
func (s *Session) SaveEdit(overlay types.EditOverlay, refresh Refresher) (types.SectionDraft, error) {
	spec, err := s.Spec(overlay.SectionName)
	if err != nil {
		return types.SectionDraft{}, err
	}
	if len(overlay.Paragraphs) == 0 {
		return types.SectionDraft{}, fmt.Errorf("section %q: %w", spec.Name, ErrEmptyEdit)
	}
	for i, text := range overlay.Paragraphs {
		if i < 0 {
			return types.SectionDraft{}, fmt.Errorf("section %q paragraph %d: %w", spec.Name, i, ErrParagraphRange)
		}
		if markup.StripMarkers(text) == "" {
			return types.SectionDraft{}, fmt.Errorf("section %q paragraph %d: %w", spec.Name, i, ErrEmptyEdit)
		}
	}
	overlay.SectionName = spec.Name

	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slot(spec.Name)
	prior := sl.draft
	if prior == nil {
		prior = &types.SectionDraft{SectionName: spec.Name}
	}
	merged := reconcile.Reconcile(prior, nil, &overlay)
	if refresh != nil {
		refresh(spec, &merged)
	}
	sl.draft = &merged
	sl.seq++
	return copyDraft(&merged), nil
}

// Lock marks paragraphs of the section's draft as locked.
func (s *Session) Lock(name string, indices ...int) error {
	return s.mutate(name, func(d *types.SectionDraft) error {
		n := len(markup.Paragraphs(d.Text))
		for _, i := range indices {
			if i < 0 || i >= n {
				return fmt.Errorf("section %q paragraph %d of %d: %w", d.SectionName, i, n, ErrParagraphRange)
			}
		}
		d.Lock(indices...)
		return nil
	})
}

// Unlock removes paragraphs from the section's locked set.
func (s *Session) Unlock(name string, indices ...int) error {
	return s.mutate(name, func(d *types.SectionDraft) error {
		d.Unlock(indices...)
		return nil
	})
}

// ClearLocks empties the section's locked set.
func (s *Session) ClearLocks(name string) error {
	return s.mutate(name, func(d *types.SectionDraft) error {
		d.LockedParagraphs = []int{}
		return nil
	})
}

// Update applies fn to a copy of the section's draft and stores the result.
// A change bumps the sequence number like any user change; a call that
// leaves the draft as it was does not.
func (s *Session) Update(name string, fn func(spec types.SectionSpec, d *types.SectionDraft)) error {
	spec, err := s.Spec(name)
	if err != nil {
		return err
	}
	return s.mutate(name, func(d *types.SectionDraft) error {
		fn(spec, d)
		return nil
	})
}

func (s *Session) mutate(name string, fn func(d *types.SectionDraft) error) error {
	spec, err := s.Spec(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slot(spec.Name)
	if sl.draft == nil {
		return fmt.Errorf("section %q: %w", spec.Name, ErrNoDraft)
	}
	d := copyDraft(sl.draft)
	if err := fn(&d); err != nil {
		return err
	}
	if reflect.DeepEqual(d, *sl.draft) {
		return nil
	}
	sl.draft = &d
	sl.seq++
	return nil
}

// SetRetrieval records the latest retrieval result for its section.
func (s *Session) SetRetrieval(res retrieve.Result) {
	spec, err := s.Spec(res.SectionName)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := res
	r.SectionName = spec.Name
	s.slot(spec.Name).retrieval = &r
}

// Retrievals returns the latest retrieval result for every section that
// has one.
func (s *Session) Retrievals() map[string]retrieve.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]retrieve.Result)
	for name, sl := range s.slots {
		if sl.retrieval != nil {
			out[name] = *sl.retrieval
		}
	}
	return out
}

func copyDraft(d *types.SectionDraft) types.SectionDraft {
	c := *d
	c.Citations = slices.Clone(d.Citations)
	c.LockedParagraphs = slices.Clone(d.LockedParagraphs)
	c.ParagraphOwners = slices.Clone(d.ParagraphOwners)
	c.Warnings = slices.Clone(d.Warnings)
	return c
}
