// Package accessor resolves slash-delimited paths against a turn's cached snapshot
// and applies insertions and deletions to it.
//
// It is the only surface scripts see: five named operations plus a delegate to the
// raw host binding for everything else.
package accessor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/cache"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/ports"
)

// Namespace is the fixed set of operations bound onto a script's namespace object.
// Operation names are part of the script compatibility surface.
type Namespace interface {
	// GetItems returns the root collection of the snapshot (getItems).
	GetItems(ctx context.Context) (*domain.Node, error)

	// UpdateItems flushes the snapshot to the host (updateItems).
	UpdateItems(ctx context.Context) error

	// Item resolves a path; absent nodes yield nil without error (item).
	Item(ctx context.Context, path string) (*domain.Node, error)

	// AddItem appends a node at path, named after its final segment (addItem).
	AddItem(ctx context.Context, path string, template *domain.Node) (*domain.Node, error)

	// DeleteItem removes the node at path and releases it on the host (deleteItem).
	DeleteItem(ctx context.Context, path string) error

	// Host is the pass-through to the raw host binding.
	Host() ports.Host
}

// Accessor implements Namespace over a Cache.
type Accessor struct {
	cache     *cache.Cache
	hooks     domain.LifecycleHooks
	validator NodeValidator
	logger    *slog.Logger
}

// NodeValidator rejects nodes before they are inserted.
type NodeValidator interface {
	CheckNode(n *domain.Node) error
}

var _ Namespace = (*Accessor)(nil)

// Option configures the Accessor.
type Option func(*Accessor)

// WithLogger configures a logger for the Accessor.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accessor) {
		a.logger = logger
	}
}

// WithLifecycleHooks registers delete observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Accessor) {
		a.hooks = hooks
	}
}

// WithValidator checks every node added through AddItem.
func WithValidator(v NodeValidator) Option {
	return func(a *Accessor) {
		a.validator = v
	}
}

// New creates an Accessor reading and writing through the given cache.
func New(c *cache.Cache, opts ...Option) *Accessor {
	a := &Accessor{
		cache:  c,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetItems returns the snapshot root, fetching it on first use.
func (a *Accessor) GetItems(ctx context.Context) (*domain.Node, error) {
	return a.cache.Root(ctx)
}

// UpdateItems flushes the snapshot. The next access re-fetches.
func (a *Accessor) UpdateItems(ctx context.Context) error {
	return a.cache.Flush(ctx)
}

// Host returns the raw host binding.
func (a *Accessor) Host() ports.Host {
	return a.cache.Host()
}

// Item resolves path against the snapshot. The empty path returns the root.
func (a *Accessor) Item(ctx context.Context, path string) (*domain.Node, error) {
	return a.resolve(ctx, domain.ParsePath(path))
}

// Resolve is Item for an already parsed path.
func (a *Accessor) Resolve(ctx context.Context, path domain.Path) (*domain.Node, error) {
	return a.resolve(ctx, path)
}

func (a *Accessor) resolve(ctx context.Context, path domain.Path) (*domain.Node, error) {
	root, err := a.cache.Root(ctx)
	if err != nil {
		return nil, err
	}
	return Find(root, path), nil
}

// AddItem appends template to the items of the node at the parent path, creating
// that items list if absent, and names it after the final segment. The parent
// itself is never created: an unresolved parent is an invalid operation.
// A nil template appends an empty node.
func (a *Accessor) AddItem(ctx context.Context, path string, template *domain.Node) (*domain.Node, error) {
	p := domain.ParsePath(path)
	name := p.Base()
	if name == "" {
		return nil, fmt.Errorf("%w: cannot add an unnamed item at %q", domain.ErrInvalidOperation, path)
	}

	parent, err := a.resolve(ctx, p.Parent())
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: parent of %q does not exist", domain.ErrInvalidOperation, path)
	}

	node := template
	if node == nil {
		node = domain.NewNode("", nil)
	}
	if node.Attrs == nil {
		node.Attrs = make(map[string]any)
	}
	node.Name = name

	if a.validator != nil {
		if err := a.validator.CheckNode(node); err != nil {
			if errors.Is(err, domain.ErrInvalidOperation) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %q rejected: %w", domain.ErrInvalidOperation, path, err)
		}
	}

	if parent.Items == nil {
		parent.Items = []*domain.Node{}
	}
	parent.Items = append(parent.Items, node)

	a.logger.Debug("Item added", "path", path, "type", node.Type())
	return node, nil
}

// DeleteItem removes the node at path from its parent's items, shifting later
// siblings down, and tells the host to release it right away.
func (a *Accessor) DeleteItem(ctx context.Context, path string) error {
	p := domain.ParsePath(path)
	if p.IsRoot() {
		return fmt.Errorf("%w: cannot delete the root collection", domain.ErrInvalidOperation)
	}

	node, err := a.resolve(ctx, p)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("%w: item %q does not exist", domain.ErrInvalidOperation, path)
	}

	// The node resolved, so its parent does too.
	parent, err := a.resolve(ctx, p.Parent())
	if err != nil {
		return err
	}
	if i := slices.Index(parent.Items, node); i >= 0 {
		parent.Items = slices.Delete(parent.Items, i, i+1)
	}

	err = a.cache.Host().DeleteNode(ctx, node)
	if a.hooks.OnDelete != nil {
		a.hooks.OnDelete(ctx, &domain.NodeEvent{
			EventBase: domain.NewEventBase(domain.EventDelete),
			Path:      path,
			Node:      node,
			Err:       err,
		})
	}
	if err != nil {
		return fmt.Errorf("%w: failed to release %q: %w", domain.ErrHostIO, path, err)
	}

	a.logger.Debug("Item deleted", "path", path)
	return nil
}
