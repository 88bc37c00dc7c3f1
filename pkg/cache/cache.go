// Package cache holds the per-turn snapshot of a host document.
//
// A Cache fetches the root collection from its host at most once, hands out the
// same snapshot to every caller until Flush, and writes it back exactly once.
// It is not safe for concurrent use: a turn is single-threaded by contract.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/ports"
)

// Cache is the DocumentTreeCache of one turn.
type Cache struct {
	host   ports.Host
	root   *domain.Node
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option configures the Cache.
type Option func(*Cache)

// WithLogger configures a logger for the Cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers fetch/flush observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Cache) {
		c.hooks = hooks
	}
}

// New creates an empty (unfetched) cache over the given host.
func New(host ports.Host, opts ...Option) *Cache {
	c := &Cache{
		host:   host,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the cached snapshot, fetching it from the host on first use.
// The returned node is the root collection (Name == "", Items == top-level nodes)
// and stays the same pointer until Flush or Discard.
func (c *Cache) Root(ctx context.Context) (*domain.Node, error) {
	if c.root != nil {
		return c.root, nil
	}

	items, err := c.host.FetchRoot(ctx)
	c.emit(ctx, c.hooks.OnFetch, domain.EventFetch, len(items), err)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch root: %w", domain.ErrHostIO, err)
	}
	if items == nil {
		items = []*domain.Node{}
	}

	c.root = &domain.Node{Items: items, Attrs: map[string]any{}}
	c.logger.Debug("Snapshot fetched", "items", len(items))
	return c.root, nil
}

// Flush sends the snapshot to the host and clears the cache. The cache is cleared
// even if the host write fails, so the next Root always re-fetches.
// Flushing an unfetched cache is a no-op.
func (c *Cache) Flush(ctx context.Context) error {
	if c.root == nil {
		return nil
	}
	items := c.root.Items
	c.root = nil

	err := c.host.Flush(ctx, items)
	c.emit(ctx, c.hooks.OnFlush, domain.EventFlush, len(items), err)
	if err != nil {
		return fmt.Errorf("%w: failed to flush snapshot: %w", domain.ErrHostIO, err)
	}
	c.logger.Debug("Snapshot flushed", "items", len(items))
	return nil
}

// Discard drops the snapshot without writing it back.
func (c *Cache) Discard() {
	if c.root != nil {
		c.logger.Debug("Snapshot discarded", "items", len(c.root.Items))
	}
	c.root = nil
}

// Fetched reports whether a snapshot is currently held.
func (c *Cache) Fetched() bool {
	return c.root != nil
}

// Host returns the underlying host binding.
func (c *Cache) Host() ports.Host {
	return c.host
}

func (c *Cache) emit(ctx context.Context, hook func(context.Context, *domain.SnapshotEvent), t domain.EventType, items int, err error) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.SnapshotEvent{
		EventBase: domain.NewEventBase(t),
		Items:     items,
		Err:       err,
	})
}
