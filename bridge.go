package docbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/accessor"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/ports"
	"github.com/aretw0/docbridge/pkg/schema"
	"github.com/aretw0/docbridge/pkg/script"
	"github.com/aretw0/docbridge/pkg/session"
)

// Version is the released version of the module.
const Version = "0.3.0"

// Bridge is the high-level entry point: it runs turns and scripts against the
// documents of one store.
type Bridge struct {
	manager *session.Manager
	engine  *script.Engine

	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	locker        ports.DistributedLocker
	lockTTL       time.Duration
	globals       []string
	values        map[string][]float64
	output        io.Writer
	scriptTimeout time.Duration
	functions     []ports.FunctionProvider
	schemas       schema.Registry
}

// Option defines a functional option for configuring the Bridge.
type Option func(*Bridge)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bridge) {
		b.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the bridge.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithLocker enables distributed locking of documents.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(b *Bridge) {
		b.locker = locker
		b.lockTTL = ttl
	}
}

// WithScriptGlobals sets the global names scripts see the namespace under
// (default "Session" and "gpupad").
func WithScriptGlobals(names ...string) Option {
	return func(b *Bridge) {
		b.globals = names
	}
}

// WithScriptValue defines a numeric global for every script.
func WithScriptValue(name string, values ...float64) Option {
	return func(b *Bridge) {
		b.values[name] = values
	}
}

// WithScriptOutput sets where console.log and print write.
func WithScriptOutput(w io.Writer) Option {
	return func(b *Bridge) {
		b.output = w
	}
}

// WithScriptTimeout bounds every RunScript call. Zero means no limit.
func WithScriptTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.scriptTimeout = d
	}
}

// WithHostFunctions exposes extra operations to scripts, next to the built-in
// Session functions.
func WithHostFunctions(providers ...ports.FunctionProvider) Option {
	return func(b *Bridge) {
		b.functions = append(b.functions, providers...)
	}
}

// WithSchemas rejects added items whose attributes break the schema of their type.
func WithSchemas(r schema.Registry) Option {
	return func(b *Bridge) {
		b.schemas = r
	}
}

// New creates a Bridge over store.
func New(store ports.DocumentStore, opts ...Option) *Bridge {
	b := &Bridge{
		logger: logging.NewNop(),
		values: make(map[string][]float64),
		output: io.Discard,
	}
	for _, opt := range opts {
		opt(b)
	}

	managerOpts := []session.Option{
		session.WithLogger(b.logger),
		session.WithLifecycleHooks(b.hooks),
		session.WithFunctions(b.functions...),
	}
	if len(b.schemas) > 0 {
		managerOpts = append(managerOpts, session.WithNodeValidator(b.schemas))
	}
	if b.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(b.locker), session.WithLockTTL(b.lockTTL))
	}
	b.manager = session.NewManager(store, managerOpts...)

	engineOpts := []script.Option{
		script.WithLogger(b.logger),
		script.WithOutput(b.output),
		script.WithGlobals(b.globals...),
	}
	for name, values := range b.values {
		engineOpts = append(engineOpts, script.WithValues(name, values...))
	}
	b.engine = script.New(engineOpts...)
	return b
}

// Turn runs fn against a fresh snapshot of docID. See session.Manager.Turn.
func (b *Bridge) Turn(ctx context.Context, docID string, fn session.TurnFunc) error {
	return b.manager.Turn(ctx, docID, fn)
}

// RunScript executes a Lua script as one turn on docID.
func (b *Bridge) RunScript(ctx context.Context, docID, source, name string) error {
	ctx, cancel := b.scriptContext(ctx)
	defer cancel()

	b.logger.Debug("Running script", "document_id", docID, "script", name)
	return b.manager.Turn(ctx, docID, b.scriptTurn(source, name))
}

// TurnDiff runs fn as one turn and returns the document before and after it.
func (b *Bridge) TurnDiff(ctx context.Context, docID string, fn session.TurnFunc) (*session.Change, error) {
	return b.manager.TurnDiff(ctx, docID, fn)
}

// RunScriptDiff is RunScript returning the document before and after the turn.
func (b *Bridge) RunScriptDiff(ctx context.Context, docID, source, name string) (*session.Change, error) {
	ctx, cancel := b.scriptContext(ctx)
	defer cancel()

	b.logger.Debug("Running script", "document_id", docID, "script", name)
	return b.manager.TurnDiff(ctx, docID, b.scriptTurn(source, name))
}

func (b *Bridge) scriptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.scriptTimeout > 0 {
		return context.WithTimeout(ctx, b.scriptTimeout)
	}
	return ctx, func() {}
}

func (b *Bridge) scriptTurn(source, name string) session.TurnFunc {
	return func(ctx context.Context, ns accessor.Namespace) error {
		return b.engine.Run(ctx, ns, source, name)
	}
}

// Validate checks a script for syntax errors.
func (b *Bridge) Validate(source, name string) error {
	return b.engine.Validate(source, name)
}

// EvalValues evaluates a numeric Lua expression.
func (b *Bridge) EvalValues(ctx context.Context, expression string) ([]float64, error) {
	return b.engine.EvalValues(ctx, expression)
}

// Snapshot returns the persisted state of docID. A missing document yields an
// empty, unsaved one.
func (b *Bridge) Snapshot(ctx context.Context, docID string) (*domain.Document, error) {
	doc, err := b.manager.Load(ctx, docID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.NewDocument(docID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %q: %w", docID, err)
	}
	return doc, nil
}

// Manager returns the turn manager.
func (b *Bridge) Manager() *session.Manager {
	return b.manager
}

// Engine returns the script engine.
func (b *Bridge) Engine() *script.Engine {
	return b.engine
}
