// Package loam stores documents in a Loam repository: one note per document, with
// frontmatter metadata and the tree as a JSON body.
package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/loam"
)

// Store implements ports.DocumentStore on a Loam typed repository.
type Store struct {
	Repo *loam.TypedRepository[DocumentMetadata]
	dir  string
}

// New initializes a Loam repository at dir. Versioning is off unless opts turn it on.
func New(dir string, opts ...loam.Option) (*Store, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}

	options := append([]loam.Option{
		loam.WithVersioning(false),
		loam.WithForceTemp(false),
	}, opts...)
	repo, err := loam.Init(absPath, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	return &Store{
		Repo: loam.NewTypedRepository[DocumentMetadata](repo),
		dir:  absPath,
	}, nil
}

// Dir returns the repository root.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the document note.
func (s *Store) Save(ctx context.Context, docID string, doc *domain.Document) error {
	stored := *doc
	stored.ID = docID
	if stored.Items == nil {
		stored.Items = []*domain.Node{}
	}
	body, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	meta := DocumentMetadata{ID: docID, Kind: Kind}
	if !doc.UpdatedAt.IsZero() {
		meta.UpdatedAt = doc.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	err = s.Repo.Save(ctx, &loam.DocumentModel[DocumentMetadata]{
		ID:      docID,
		Content: string(body),
		Data:    meta,
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", docID, err)
	}
	return nil
}

// Load reads the document note.
func (s *Store) Load(ctx context.Context, docID string) (*domain.Document, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(ids, docID) {
		return nil, domain.ErrDocumentNotFound
	}

	note, err := s.Repo.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", docID, err)
	}

	doc := domain.NewDocument(docID)
	if err := json.Unmarshal([]byte(note.Content), doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", docID, err)
	}
	doc.ID = docID
	if doc.Items == nil {
		doc.Items = []*domain.Node{}
	}
	return doc, nil
}

// Delete removes the note file, whatever its extension.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if docID == "" || strings.ContainsAny(docID, `*?[`) {
		return fmt.Errorf("invalid document id %q", docID)
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, docID+".*"))
	if err != nil {
		return fmt.Errorf("failed to find document %s: %w", docID, err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete document %s: %w", docID, err)
		}
	}
	return nil
}

// List returns the IDs of all notes written by this adapter.
func (s *Store) List(ctx context.Context) ([]string, error) {
	notes, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	ids := make([]string, 0, len(notes))
	for _, note := range notes {
		if note.Data.Kind != Kind {
			continue
		}
		id := note.Data.ID
		if id == "" {
			id = trimExtension(note.ID)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}
