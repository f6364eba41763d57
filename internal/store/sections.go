// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Every drafts row carries the section's revision (seq) and an optional
// generation lease. Writers compare-and-swap on seq, so two processes
// working on the same session never overwrite each other: the later
// write fails with types.ErrStaleResult and must reload.

// ensureSection creates the row for a section that has never been drafted.
// The empty draft marks it as holding state only.
func (s *Store) ensureSection(ctx context.Context, sessionID, section string, position int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (session_id, section_name, position, draft, updated_at)
		 VALUES (?, ?, ?, '', ?)
		 ON CONFLICT(session_id, section_name) DO NOTHING`,
		sessionID, section, position, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("creating section %q: %w", section, err)
	}
	return nil
}

// ClaimSection takes the generation lease on a section whose stored
// revision is still revision. It fails with types.ErrGenerationInProgress
// while another live lease is held, and with types.ErrStaleResult when the
// section has moved past revision. Leases older than the configured lease
// timeout are treated as abandoned.
func (s *Store) ClaimSection(ctx context.Context, sessionID, section string, revision uint64) (string, error) {
	if err := s.ensureSection(ctx, sessionID, section, 0); err != nil {
		return "", err
	}

	lease := uuid.NewString()
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET lease = ?, leased_at = ?
		 WHERE session_id = ? AND section_name = ? AND seq = ?
			AND (lease = '' OR leased_at <= ?)`,
		lease, now.UnixNano(), sessionID, section, revision, now.Add(-s.leaseTTL).UnixNano())
	if err != nil {
		return "", fmt.Errorf("claiming section %q: %w", section, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return lease, nil
	}

	var (
		seq      uint64
		leasedAt int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT seq, leased_at FROM drafts WHERE session_id = ? AND section_name = ?`,
		sessionID, section).Scan(&seq, &leasedAt)
	if err != nil {
		return "", fmt.Errorf("reading section %q: %w", section, err)
	}
	if seq != revision {
		return "", fmt.Errorf("%w: stored revision is %d, loaded %d", types.ErrStaleResult, seq, revision)
	}
	return "", fmt.Errorf("%w: claimed at %s", types.ErrGenerationInProgress,
		time.Unix(0, leasedAt).UTC().Format(time.RFC3339))
}

// ReleaseSection drops lease if it is still the section's current lease.
func (s *Store) ReleaseSection(ctx context.Context, sessionID, section, lease string) error {
	if lease == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET lease = '', leased_at = 0
		 WHERE session_id = ? AND section_name = ? AND lease = ?`,
		sessionID, section, lease)
	if err != nil {
		return fmt.Errorf("releasing section %q: %w", section, err)
	}
	return nil
}

// WriteDraft stores d as revision next of its section, provided the stored
// revision is still base. Otherwise nothing is written and the error wraps
// types.ErrStaleResult. When lease is the section's current lease it is
// released with the write; a lease held by someone else is left alone.
func (s *Store) WriteDraft(ctx context.Context, sessionID string, position int, base, next uint64, d types.SectionDraft, lease string) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling draft %q: %w", d.SectionName, err)
	}
	if err := s.ensureSection(ctx, sessionID, d.SectionName, position); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET
			draft = ?, position = ?, seq = ?, updated_at = ?,
			lease = CASE WHEN ? <> '' AND lease = ? THEN '' ELSE lease END,
			leased_at = CASE WHEN ? <> '' AND lease = ? THEN 0 ELSE leased_at END
		 WHERE session_id = ? AND section_name = ? AND seq = ?`,
		string(data), position, next, time.Now().UTC().Format(time.RFC3339Nano),
		lease, lease, lease, lease,
		sessionID, d.SectionName, base)
	if err != nil {
		return fmt.Errorf("writing draft %q: %w", d.SectionName, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: revision %d is no longer current", types.ErrStaleResult, base)
	}
	return nil
}
