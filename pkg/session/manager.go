package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/accessor"
	"github.com/aretw0/docbridge/pkg/cache"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/host"
	"github.com/aretw0/docbridge/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// TurnFunc is the body of a turn. It sees the document only through ns.
type TurnFunc func(ctx context.Context, ns accessor.Namespace) error

// Manager orchestrates document access, ensuring turns on one document are serialized.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.DocumentStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker    ports.DistributedLocker // Optional distributed locker
	lockTTL   time.Duration
	hooks     domain.LifecycleHooks
	functions []ports.FunctionProvider
	validator accessor.NodeValidator
	logger    *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager and everything a turn builds.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. They are passed down to the
// cache and accessor of every turn.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithFunctions exposes extra host operations to every turn's namespace.
func WithFunctions(providers ...ports.FunctionProvider) Option {
	return func(m *Manager) {
		m.functions = append(m.functions, providers...)
	}
}

// WithNodeValidator rejects inserted nodes that fail v.
func WithNodeValidator(v accessor.NodeValidator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// NewManager creates a Manager over the given document store.
func NewManager(store ports.DocumentStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(docID) after unlocking.
func (m *Manager) acquire(docID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[docID]
	if !exists {
		entry = &lockEntry{}
		m.locks[docID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[docID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, docID)
	}
}

// Turn runs fn against a fresh snapshot of docID while holding the document lock.
// The snapshot is flushed if fn succeeds and discarded otherwise; deletions already
// reached the host when deleteItem ran.
func (m *Manager) Turn(ctx context.Context, docID string, fn TurnFunc) error {
	if docID == "" {
		return fmt.Errorf("%w: empty document id", domain.ErrInvalidOperation)
	}
	return m.WithLock(ctx, docID, func(ctx context.Context) error {
		return m.turn(ctx, docID, fn)
	})
}

// Change is the document state on either side of one turn.
type Change struct {
	Before *domain.Document
	After  *domain.Document
}

// Diff compares the item trees of Before and After.
func (c *Change) Diff() *domain.TreeDiff {
	return domain.Diff(c.Before.Items, c.After.Items)
}

// TurnDiff is Turn, also reading the persisted document right before and right after
// the turn while the same lock is held. A missing document reads as an empty one.
func (m *Manager) TurnDiff(ctx context.Context, docID string, fn TurnFunc) (*Change, error) {
	if docID == "" {
		return nil, fmt.Errorf("%w: empty document id", domain.ErrInvalidOperation)
	}
	change := &Change{}
	err := m.WithLock(ctx, docID, func(ctx context.Context) error {
		var err error
		if change.Before, err = m.loadOrEmpty(ctx, docID); err != nil {
			return err
		}
		if err := m.turn(ctx, docID, fn); err != nil {
			return err
		}
		change.After, err = m.loadOrEmpty(ctx, docID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (m *Manager) loadOrEmpty(ctx context.Context, docID string) (*domain.Document, error) {
	doc, err := m.store.Load(ctx, docID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.NewDocument(docID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load document %q: %w", domain.ErrHostIO, docID, err)
	}
	return doc, nil
}

func (m *Manager) turn(ctx context.Context, docID string, fn TurnFunc) error {
	turnID := uuid.NewString()
	start := time.Now()
	logger := m.logger.With("turn_id", turnID, "document_id", docID)

	if m.hooks.OnTurnStart != nil {
		m.hooks.OnTurnStart(ctx, &domain.TurnEvent{
			EventBase:  domain.NewEventBase(domain.EventTurnStart),
			TurnID:     turnID,
			DocumentID: docID,
		})
	}

	err := m.runTurn(ctx, docID, logger, fn)

	if m.hooks.OnTurnEnd != nil {
		m.hooks.OnTurnEnd(ctx, &domain.TurnEvent{
			EventBase:  domain.NewEventBase(domain.EventTurnEnd),
			TurnID:     turnID,
			DocumentID: docID,
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	if err != nil {
		logger.Debug("Turn failed", "err", err)
		return err
	}
	logger.Debug("Turn completed", "duration", time.Since(start))
	return nil
}

func (m *Manager) runTurn(ctx context.Context, docID string, logger *slog.Logger, fn TurnFunc) (err error) {
	h := host.New(m.store, docID, host.WithLogger(logger), host.WithFunctions(m.functions...))
	c := cache.New(h, cache.WithLogger(logger), cache.WithLifecycleHooks(m.hooks))
	accOpts := []accessor.Option{accessor.WithLogger(logger), accessor.WithLifecycleHooks(m.hooks)}
	if m.validator != nil {
		accOpts = append(accOpts, accessor.WithValidator(m.validator))
	}
	ns := accessor.New(c, accOpts...)

	defer func() {
		if r := recover(); r != nil {
			c.Discard()
			err = fmt.Errorf("turn panicked: %v", r)
		}
	}()

	if err := fn(ctx, ns); err != nil {
		c.Discard()
		return err
	}
	return c.Flush(ctx)
}

// Load retrieves a document from the store.
func (m *Manager) Load(ctx context.Context, docID string) (*domain.Document, error) {
	var doc *domain.Document
	err := m.WithLock(ctx, docID, func(ctx context.Context) error {
		var err error
		doc, err = m.store.Load(ctx, docID)
		return err
	})
	return doc, err
}

// LoadOrCreate loads a document, creating and persisting an empty one if missing.
func (m *Manager) LoadOrCreate(ctx context.Context, docID string) (*domain.Document, error) {
	var doc *domain.Document
	err := m.WithLock(ctx, docID, func(ctx context.Context) error {
		var err error
		doc, err = m.store.Load(ctx, docID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			return fmt.Errorf("failed to check document existence: %w", err)
		}

		doc = domain.NewDocument(docID)
		doc.UpdatedAt = time.Now()
		if err := m.store.Save(ctx, docID, doc); err != nil {
			return fmt.Errorf("failed to initialize document: %w", err)
		}
		return nil
	})
	return doc, err
}

// Delete removes the document from the store.
func (m *Manager) Delete(ctx context.Context, docID string) error {
	return m.WithLock(ctx, docID, func(ctx context.Context) error {
		return m.store.Delete(ctx, docID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying document store.
func (m *Manager) Store() ports.DocumentStore {
	return m.store
}

// WithLock executes a function while holding the lock for the document.
func (m *Manager) WithLock(ctx context.Context, docID string, fn func(context.Context) error) error {
	entry := m.acquire(docID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(docID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, docID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"document_id", docID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
