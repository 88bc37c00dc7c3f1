package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/docbridge"
	"github.com/aretw0/docbridge/internal/config"
	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/adapters/file"
	loamadapter "github.com/aretw0/docbridge/pkg/adapters/loam"
	"github.com/aretw0/docbridge/pkg/adapters/memory"
	"github.com/aretw0/docbridge/pkg/adapters/process"
	redisadapter "github.com/aretw0/docbridge/pkg/adapters/redis"
	"github.com/aretw0/docbridge/pkg/adapters/sqlite"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/observability"
	"github.com/aretw0/docbridge/pkg/persistence/middleware"
	"github.com/aretw0/docbridge/pkg/ports"
)

// Options are the flags shared by every command.
type Options struct {
	Dir        string
	ConfigPath string
	Backend    string
	StorePath  string
	Debug      bool
	// Output receives console.log and print from scripts.
	Output io.Writer
}

// App is a Bridge wired from configuration, with everything it opened.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   ports.DocumentStore
	Bridge  *docbridge.Bridge
	Metrics *observability.Metrics
	Tools   *process.Runner

	closers []io.Closer
}

// Open loads the configuration, opens the store and builds the Bridge.
func Open(opts Options) (*App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.Log.Level)
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := createLogger(level)

	store, locker, closer, err := OpenStore(cfg, opts.Dir)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Metrics: observability.NewMetrics(),
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	toolsPath := resolve(opts.Dir, cfg.Script.Tools)
	tools, err := process.LoadTools(toolsPath)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Tools = process.NewRunner(
		process.WithRegistry(tools),
		process.WithBaseDir(opts.Dir),
		process.WithLogger(logger),
	)
	if len(tools) > 0 {
		logger.Debug("Process tools registered", "path", toolsPath, "tools", app.Tools.Names())
	}

	hooks := app.Metrics.Hooks()
	if opts.Debug {
		hooks = domain.MergeHooks(hooks, observability.LogHooks(logger))
	}

	output := opts.Output
	if output == nil {
		output = io.Discard
	}
	bridgeOpts := []docbridge.Option{
		docbridge.WithLogger(logger),
		docbridge.WithLifecycleHooks(hooks),
		docbridge.WithScriptGlobals(cfg.Script.Globals...),
		docbridge.WithScriptOutput(output),
		docbridge.WithScriptTimeout(cfg.ScriptTimeout()),
		docbridge.WithHostFunctions(app.Tools),
	}
	for name, values := range cfg.Script.Values {
		bridgeOpts = append(bridgeOpts, docbridge.WithScriptValue(name, values...))
	}
	if locker != nil {
		bridgeOpts = append(bridgeOpts, docbridge.WithLocker(locker, cfg.LockTTL()))
	}
	schemas, err := cfg.SchemaRegistry()
	if err != nil {
		app.Close()
		return nil, err
	}
	bridgeOpts = append(bridgeOpts, docbridge.WithSchemas(schemas))
	app.Bridge = docbridge.New(store, bridgeOpts...)

	logger.Debug("Bridge ready", "backend", cfg.Store.Backend, "path", cfg.Store.Path)
	return app, nil
}

// Close releases the store connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func loadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = filepath.Join(opts.Dir, config.DefaultFileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.Backend != "" {
		cfg.Store.Backend = opts.Backend
	}
	if opts.StorePath != "" {
		cfg.Store.Path = opts.StorePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore builds the configured document store, wrapped in the redaction and
// encryption middleware when configured. Relative paths are taken from dir. The
// locker is only set for redis with locking enabled; the closer is nil when the
// store holds no connection.
func OpenStore(cfg *config.Config, dir string) (ports.DocumentStore, ports.DistributedLocker, io.Closer, error) {
	mws, err := storeMiddleware(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	store, locker, closer, err := openBackend(cfg, dir)
	if err != nil {
		return nil, nil, nil, err
	}
	return middleware.Chain(store, mws...), locker, closer, nil
}

func storeMiddleware(cfg *config.Config) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Store.Redact) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Store.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}

	active, fallback, err := cfg.EncryptionKeys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

func openBackend(cfg *config.Config, dir string) (ports.DocumentStore, ports.DistributedLocker, io.Closer, error) {
	path := resolve(dir, cfg.Store.Path)

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil, nil

	case config.BackendFile:
		return file.New(path), nil, nil, nil

	case config.BackendRedis:
		store := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redisadapter.WithPrefix(cfg.Redis.Prefix),
			redisadapter.WithTTL(cfg.RedisTTL()),
		)
		var locker ports.DistributedLocker
		if cfg.Redis.Lock {
			locker = redisadapter.NewLocker(store.Client(), cfg.Redis.Prefix)
		}
		return store, locker, store, nil

	case config.BackendSQLite:
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "documents.db")
		}
		store, err := sqlite.New(path)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, store, nil

	case config.BackendLoam:
		store, err := loamadapter.New(path)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, nil, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
