// Package host binds the bridge's host port to a persistent DocumentStore.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/ports"
)

// DocumentHost implements ports.Host for one document of a DocumentStore.
//
// A missing document reads as an empty collection and is created on first flush.
// Flush assigns ids to new nodes; DeleteNode removes a persisted node immediately.
type DocumentHost struct {
	store  ports.DocumentStore
	docID  string
	now    func() time.Time
	logger *slog.Logger
	extra  []ports.FunctionProvider
}

var (
	_ ports.Host             = (*DocumentHost)(nil)
	_ ports.FunctionProvider = (*DocumentHost)(nil)
)

// Option configures the DocumentHost.
type Option func(*DocumentHost)

// WithLogger configures a logger for the DocumentHost.
func WithLogger(logger *slog.Logger) Option {
	return func(h *DocumentHost) {
		h.logger = logger
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(h *DocumentHost) {
		h.now = now
	}
}

// WithFunctions adds the operations of providers to HostFunctions. Built-in
// operations keep their names; among providers, later ones win.
func WithFunctions(providers ...ports.FunctionProvider) Option {
	return func(h *DocumentHost) {
		h.extra = append(h.extra, providers...)
	}
}

// New creates a host for the document docID in store.
func New(store ports.DocumentStore, docID string, opts ...Option) *DocumentHost {
	h := &DocumentHost{
		store:  store,
		docID:  docID,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DocumentID returns the ID of the bound document.
func (h *DocumentHost) DocumentID() string {
	return h.docID
}

// FetchRoot loads the document's top-level collection.
func (h *DocumentHost) FetchRoot(ctx context.Context) ([]*domain.Node, error) {
	doc, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

// Flush saves items as the new document state, assigning ids to new nodes.
func (h *DocumentHost) Flush(ctx context.Context, items []*domain.Node) error {
	doc, err := h.load(ctx)
	if err != nil {
		return err
	}

	doc.Items = items
	if doc.Items == nil {
		doc.Items = []*domain.Node{}
	}
	assigned := doc.AssignIDs()
	doc.Revision++
	doc.UpdatedAt = h.now()

	if err := h.store.Save(ctx, h.docID, doc); err != nil {
		return fmt.Errorf("failed to save document %q: %w", h.docID, err)
	}
	h.logger.Debug("Document flushed", "document_id", h.docID, "revision", doc.Revision, "new_ids", assigned)
	return nil
}

// DeleteNode removes the persisted node carrying the same id. Nodes that were never
// flushed have no id and nothing to release.
func (h *DocumentHost) DeleteNode(ctx context.Context, node *domain.Node) error {
	id, ok := node.ID()
	if !ok {
		h.logger.Debug("Delete of unpersisted node skipped", "document_id", h.docID, "name", node.Name)
		return nil
	}

	doc, err := h.store.Load(ctx, h.docID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load document %q: %w", h.docID, err)
	}

	if !domain.RemoveByID(&doc.Items, id) {
		return nil
	}
	doc.Revision++
	doc.UpdatedAt = h.now()
	if err := h.store.Save(ctx, h.docID, doc); err != nil {
		return fmt.Errorf("failed to save document %q: %w", h.docID, err)
	}
	h.logger.Debug("Node released", "document_id", h.docID, "id", id, "revision", doc.Revision)
	return nil
}

// HostFunctions exposes document-level operations to scripts.
func (h *DocumentHost) HostFunctions() map[string]ports.HostFunc {
	functions := make(map[string]ports.HostFunc)
	for _, provider := range h.extra {
		for name, fn := range provider.HostFunctions() {
			functions[name] = fn
		}
	}
	for name, fn := range h.builtins() {
		functions[name] = fn
	}
	return functions
}

func (h *DocumentHost) builtins() map[string]ports.HostFunc {
	return map[string]ports.HostFunc{
		"documentId": func(ctx context.Context, args ...any) (any, error) {
			return h.docID, nil
		},
		"revision": func(ctx context.Context, args ...any) (any, error) {
			doc, err := h.load(ctx)
			if err != nil {
				return nil, err
			}
			return doc.Revision, nil
		},
		"listDocuments": func(ctx context.Context, args ...any) (any, error) {
			ids, err := h.store.List(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list documents: %w", err)
			}
			list := make([]any, len(ids))
			for i, id := range ids {
				list[i] = id
			}
			return list, nil
		},
	}
}

func (h *DocumentHost) load(ctx context.Context) (*domain.Document, error) {
	doc, err := h.store.Load(ctx, h.docID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.NewDocument(h.docID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %q: %w", h.docID, err)
	}
	if doc.Items == nil {
		doc.Items = []*domain.Node{}
	}
	return doc, nil
}
