// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// AddDocument stores doc and its chunks, replacing any chunks previously
// stored for the same document ID. Chunk order is preserved as insertion
// order, which breaks score ties in Search.
func (s *Store) AddDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, added_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, added_at=excluded.added_at`,
		doc.ID, doc.Title, doc.AddedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, page_number, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, doc.ID, c.PageNumber, c.Text); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns up to k chunks matching query, best first. Any query
// token may match. Scores are bm25 ranks mapped into [0,1); equal ranks
// keep insertion order.
func (s *Store) Search(ctx context.Context, query string, k int) ([]types.Chunk, error) {
	match := ftsQuery(query)
	if match == "" || k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, d.title, c.page_number, c.text, chunks_fts.rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ?
		ORDER BY chunks_fts.rank, c.rowid
		LIMIT ?`, match, k)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []types.Chunk
	for rows.Next() {
		var (
			c    types.Chunk
			rank float64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.DocumentTitle, &c.PageNumber, &c.Text, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		c.Score = normalizeRank(rank)
		results = append(results, c)
	}
	return results, rows.Err()
}

// normalizeRank maps an FTS5 bm25 rank, where more negative is better,
// onto [0,1).
func normalizeRank(rank float64) float64 {
	r := -rank
	if r <= 0 {
		return 0
	}
	return r / (1 + r)
}

// ftsQuery turns free text into an FTS5 expression that ORs every distinct
// token of two or more characters. Tokens are quoted so that FTS5 syntax
// in the input is matched literally.
func ftsQuery(text string) string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(tok)) < 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, `"`+tok+`"`)
	}
	return strings.Join(terms, " OR ")
}

// DocumentExists reports whether a document with id is stored.
func (s *Store) DocumentExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("looking up document: %w", err)
	}
	return n > 0, nil
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListDocuments returns every stored document with its chunk count,
// ordered by ID.
func (s *Store) ListDocuments(ctx context.Context) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.title, d.added_at, count(c.rowid)
		FROM documents d LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var (
			d       types.Document
			addedAt string
		)
		if err := rows.Scan(&d.ID, &d.Title, &addedAt, &d.Chunks); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		d.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
