// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists context documents, their searchable chunks, and
// proposal sessions in a single SQLite database. Chunk search uses an FTS5
// index kept in sync by triggers; binaries and tests must be built with
// the sqlite_fts5 tag.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

const dbFile = "proposal.db"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the proposal SQLite database.
type Store struct {
	db       *sql.DB
	dir      string
	leaseTTL time.Duration
}

// Open opens or creates the database at cfg.Dir/proposal.db and creates
// the schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = types.DefaultPipelineConfig().Store.Dir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	leaseTTL := cfg.LeaseTimeout
	if leaseTTL <= 0 {
		leaseTTL = types.DefaultPipelineConfig().Store.LeaseTimeout
	}

	s := &Store{db: db, dir: dir, leaseTTL: leaseTTL}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			added_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			page_number INTEGER NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			funding_call_id TEXT NOT NULL,
			program_name TEXT,
			blueprint TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS drafts (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			section_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			draft TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			lease TEXT NOT NULL DEFAULT '',
			leased_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (session_id, section_name)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	if err := s.addDraftColumns(); err != nil {
		return err
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE chunks_fts USING fts5(text, content=chunks, content_rowid=rowid)`,
			`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
			END`,
			`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			END`,
			`CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
				INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// addDraftColumns upgrades a drafts table created before sections carried
// a revision and a generation lease.
func (s *Store) addDraftColumns() error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info('drafts')`)
	if err != nil {
		return fmt.Errorf("reading drafts columns: %w", err)
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning column: %w", err)
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	columns := []struct{ name, def string }{
		{"seq", "INTEGER NOT NULL DEFAULT 0"},
		{"lease", "TEXT NOT NULL DEFAULT ''"},
		{"leased_at", "INTEGER NOT NULL DEFAULT 0"},
	}
	for _, c := range columns {
		if have[c.name] {
			continue
		}
		if _, err := s.db.Exec(`ALTER TABLE drafts ADD COLUMN ` + c.name + ` ` + c.def); err != nil {
			return fmt.Errorf("adding drafts.%s: %w", c.name, err)
		}
	}
	return nil
}
