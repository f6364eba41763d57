// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	ID            string    `json:"id" yaml:"id"`
	FundingCallID string    `json:"funding_call_id" yaml:"funding_call_id"`
	ProgramName   string    `json:"program_name,omitempty" yaml:"program_name,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	Sections      int       `json:"sections" yaml:"sections"`
	Drafts        int       `json:"drafts" yaml:"drafts"`
}

// SaveSession writes the session row and every draft in rec. Each draft
// written moves its section to the next revision, so a generation that
// started before the save is discarded when it commits. Drafts stored for
// sections absent from rec are kept.
func (s *Store) SaveSession(ctx context.Context, rec types.SessionRecord) error {
	bp, err := yaml.Marshal(&rec.Blueprint)
	if err != nil {
		return fmt.Errorf("marshaling blueprint: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, funding_call_id, program_name, blueprint, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			funding_call_id=excluded.funding_call_id, program_name=excluded.program_name,
			blueprint=excluded.blueprint`,
		rec.ID, rec.FundingCallID, rec.Blueprint.ProgramName, string(bp), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO drafts (session_id, section_name, position, draft, updated_at, seq) VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT(session_id, section_name) DO UPDATE SET
			position=excluded.position, draft=excluded.draft, updated_at=excluded.updated_at, seq=drafts.seq+1`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, d := range rec.Drafts {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshaling draft %q: %w", d.SectionName, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, d.SectionName, i, string(data), now); err != nil {
			return fmt.Errorf("writing draft %q: %w", d.SectionName, err)
		}
	}

	return tx.Commit()
}

// LoadSession reads the session whose ID is id or starts with id. A prefix
// matching more than one session is an error. Revisions is filled from
// the stored section state.
func (s *Store) LoadSession(ctx context.Context, id string) (types.SessionRecord, error) {
	fullID, err := s.resolveSessionID(ctx, id)
	if err != nil {
		return types.SessionRecord{}, err
	}

	var (
		rec       types.SessionRecord
		bp        string
		createdAt string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, funding_call_id, blueprint, created_at FROM sessions WHERE id = ?`, fullID,
	).Scan(&rec.ID, &rec.FundingCallID, &bp, &createdAt)
	if err != nil {
		return types.SessionRecord{}, fmt.Errorf("loading session: %w", err)
	}
	if err := yaml.Unmarshal([]byte(bp), &rec.Blueprint); err != nil {
		return types.SessionRecord{}, fmt.Errorf("parsing blueprint: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT section_name, seq, draft FROM drafts WHERE session_id = ? ORDER BY position, section_name`, fullID)
	if err != nil {
		return types.SessionRecord{}, fmt.Errorf("loading drafts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			seq  uint64
			data string
		)
		if err := rows.Scan(&name, &seq, &data); err != nil {
			return types.SessionRecord{}, fmt.Errorf("scanning row: %w", err)
		}
		if seq > 0 {
			if rec.Revisions == nil {
				rec.Revisions = make(map[string]uint64)
			}
			rec.Revisions[name] = seq
		}
		if data == "" {
			continue
		}
		var d types.SectionDraft
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return types.SessionRecord{}, fmt.Errorf("parsing draft: %w", err)
		}
		rec.Drafts = append(rec.Drafts, d)
	}
	return rec, rows.Err()
}

// DeleteSession removes the session whose ID is id or starts with id,
// together with its drafts, and returns the full ID.
func (s *Store) DeleteSession(ctx context.Context, id string) (string, error) {
	fullID, err := s.resolveSessionID(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, fullID); err != nil {
		return "", fmt.Errorf("deleting session: %w", err)
	}
	return fullID, nil
}

func (s *Store) resolveSessionID(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("session ID is required")
	}
	var exact string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM sessions WHERE id = ?`, id).Scan(&exact)
	if err == nil {
		return exact, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("looking up session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE substr(id, 1, length(?)) = ? LIMIT 2`, id, id)
	if err != nil {
		return "", fmt.Errorf("looking up session: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("scanning row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("session %s: %w", id, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("session prefix %s is ambiguous", id)
	}
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.funding_call_id, coalesce(s.program_name, ''), s.blueprint, s.created_at,
			(SELECT count(*) FROM drafts d WHERE d.session_id = s.id AND d.draft <> '')
		FROM sessions s ORDER BY s.created_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum       SessionSummary
			bp        string
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.FundingCallID, &sum.ProgramName, &bp, &createdAt, &sum.Drafts); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var blueprint types.RequirementBlueprint
		if err := yaml.Unmarshal([]byte(bp), &blueprint); err == nil {
			sum.Sections = len(blueprint.Sections)
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}
