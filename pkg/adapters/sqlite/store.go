// Package sqlite implements ports.DocumentStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aretw0/docbridge/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	revision   INTEGER NOT NULL DEFAULT 0,
	next_id    INTEGER NOT NULL DEFAULT 1,
	items      TEXT NOT NULL DEFAULT '[]',
	updated_at TEXT NOT NULL DEFAULT ''
)`

// Store keeps one row per document; the tree is a JSON column.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database file at path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL for concurrent readers alongside the single writer.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Save upserts the document row.
func (s *Store) Save(ctx context.Context, docID string, doc *domain.Document) error {
	items := doc.Items
	if items == nil {
		items = []*domain.Node{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, revision, next_id, items, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			revision = excluded.revision,
			next_id = excluded.next_id,
			items = excluded.items,
			updated_at = excluded.updated_at`,
		docID, doc.Revision, doc.NextID, string(data), formatTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Load reads the document row.
func (s *Store) Load(ctx context.Context, docID string) (*domain.Document, error) {
	var (
		items     string
		updatedAt string
	)
	doc := domain.NewDocument(docID)

	err := s.db.QueryRowContext(ctx,
		`SELECT revision, next_id, items, updated_at FROM documents WHERE id = ?`, docID,
	).Scan(&doc.Revision, &doc.NextID, &items, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	if err := json.Unmarshal([]byte(items), &doc.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	if doc.Items == nil {
		doc.Items = []*domain.Node{}
	}
	doc.UpdatedAt = parseTime(updatedAt)
	return doc, nil
}

// Delete removes the document row.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// List returns all document IDs in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
