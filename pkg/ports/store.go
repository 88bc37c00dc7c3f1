package ports

import (
	"context"

	"github.com/aretw0/docbridge/pkg/domain"
)

// DocumentStore defines the interface for persisting document trees.
// It backs the host side of the bridge: the snapshot a turn fetches and flushes.
type DocumentStore interface {
	// Save persists the document under the given ID.
	Save(ctx context.Context, docID string, doc *domain.Document) error

	// Load retrieves the document for a given ID.
	// Returns domain.ErrDocumentNotFound if the document does not exist.
	Load(ctx context.Context, docID string) (*domain.Document, error)

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, docID string) error

	// List returns the IDs of all stored documents.
	List(ctx context.Context) ([]string, error)
}
