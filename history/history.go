// Package history keeps a summary of every comparison in SQLite: which page,
// how many elements were flagged on each side, and which acquisitions failed.
// Markup itself is not stored; the snapshot hashes identify it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/ssrdiff/dbopen"
	"github.com/hazyhaar/ssrdiff/idgen"
)

// Entry is one recorded comparison.
type Entry struct {
	ID             string `json:"id"`
	PageURL        string `json:"page_url"`
	Target         string `json:"target,omitempty"`
	BaseURL        string `json:"base_url"`
	Added          int    `json:"added"`
	Missing        int    `json:"missing"`
	Compared       bool   `json:"compared"`
	Shell          bool   `json:"shell"`
	ReferenceError string `json:"reference_error,omitempty"`
	RenderedError  string `json:"rendered_error,omitempty"`
	ReferenceHash  string `json:"reference_hash,omitempty"`
	RenderedHash   string `json:"rendered_hash,omitempty"`
	DurationMS     int64  `json:"duration_ms"`
	CreatedAt      int64  `json:"created_at"`
}

// Store is the history database handle.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// Open opens (or creates) the history database at path and applies the
// schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return New(db), nil
}

// New wraps an already open database. The schema must have been applied.
func New(db *sql.DB) *Store {
	return &Store{DB: db, newID: idgen.Prefixed("cmp_", idgen.Default)}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Record inserts e, assigning ID and CreatedAt when unset.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO comparisons
				(id, page_url, target, base_url, added, missing, compared, shell,
				 reference_error, rendered_error, reference_hash, rendered_hash,
				 duration_ms, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			e.ID, e.PageURL, e.Target, e.BaseURL, e.Added, e.Missing,
			boolInt(e.Compared), boolInt(e.Shell),
			e.ReferenceError, e.RenderedError, e.ReferenceHash, e.RenderedHash,
			e.DurationMS, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("history: record: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, page_url, target, base_url, added, missing, compared, shell,
		       reference_error, rendered_error, reference_hash, rendered_hash,
		       duration_ms, created_at
		FROM comparisons ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// ForPage returns up to limit entries for pageURL, newest first.
func (s *Store) ForPage(ctx context.Context, pageURL string, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, page_url, target, base_url, added, missing, compared, shell,
		       reference_error, rendered_error, reference_hash, rendered_hash,
		       duration_ms, created_at
		FROM comparisons WHERE page_url = ? ORDER BY created_at DESC, id DESC LIMIT ?`, pageURL, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var compared, shell int
		if err := rows.Scan(&e.ID, &e.PageURL, &e.Target, &e.BaseURL, &e.Added, &e.Missing,
			&compared, &shell, &e.ReferenceError, &e.RenderedError,
			&e.ReferenceHash, &e.RenderedHash, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Compared = compared != 0
		e.Shell = shell != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
