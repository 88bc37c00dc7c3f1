// Package script runs Lua scripts against a document namespace.
//
// Every run gets a fresh interpreter. The namespace is bound under each configured
// global name and exposes getItems, updateItems, item, addItem and deleteItem; any
// other key is forwarded to the host's functions. Nodes are live views into the
// turn's snapshot.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/accessor"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/ports"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// DefaultGlobals are the names the namespace is bound to.
var DefaultGlobals = []string{"Session", "gpupad"}

// Engine compiles and runs scripts. It is safe for concurrent use; state is per run.
type Engine struct {
	globals []string
	values  map[string][]float64
	output  io.Writer
	logger  *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithGlobals replaces the global names the namespace is bound to.
func WithGlobals(names ...string) Option {
	return func(e *Engine) {
		if len(names) > 0 {
			e.globals = names
		}
	}
}

// WithValues defines a numeric global: nil when empty, a number for one value,
// otherwise a sequence.
func WithValues(name string, values ...float64) Option {
	return func(e *Engine) {
		e.values[name] = values
	}
}

// WithOutput sets where console output and print go.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.output = w
	}
}

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		globals: DefaultGlobals,
		values:  make(map[string][]float64),
		output:  io.Discard,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Globals returns the names the namespace is bound to.
func (e *Engine) Globals() []string {
	return e.globals
}

// Validate checks source for syntax errors without running it.
func (e *Engine) Validate(source, name string) error {
	if _, err := parse.Parse(strings.NewReader(source), name); err != nil {
		return newError(name, err.Error(), nil)
	}
	return nil
}

// Run executes source with ns bound to the configured globals. Cancelling ctx
// aborts the script.
func (e *Engine) Run(ctx context.Context, ns accessor.Namespace, source, name string) error {
	r := e.newRun(ctx, name)
	defer r.L.Close()

	r.bindNamespace(ns)

	fn, err := r.L.Load(strings.NewReader(source), name)
	if err != nil {
		return r.wrap(err)
	}
	r.L.Push(fn)
	if err := r.L.PCall(0, 0, nil); err != nil {
		return r.wrap(err)
	}
	return nil
}

// EvalValues evaluates a numeric expression: a number yields one value, a sequence
// yields its elements in order.
func (e *Engine) EvalValues(ctx context.Context, expression string) ([]float64, error) {
	r := e.newRun(ctx, "expression")
	defer r.L.Close()

	fn, err := r.L.Load(strings.NewReader("return "+expression), r.name)
	if err != nil {
		return nil, r.wrap(err)
	}
	r.L.Push(fn)
	if err := r.L.PCall(0, 1, nil); err != nil {
		return nil, r.wrap(err)
	}
	result := r.L.Get(-1)
	r.L.Pop(1)

	if tbl, ok := result.(*lua.LTable); ok {
		values := make([]float64, 0, tbl.Len())
		for i := 1; i <= tbl.Len(); i++ {
			v, err := r.number(expression, tbl.RawGetInt(i))
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	}
	v, err := r.number(expression, result)
	if err != nil {
		return nil, err
	}
	return []float64{v}, nil
}

func (r *run) number(expression string, v lua.LValue) (float64, error) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, newError(r.name, fmt.Sprintf("%q: expected a number, got %s", expression, v.Type()), nil)
	}
	return float64(n), nil
}

// run is the state of one script execution.
type run struct {
	engine *Engine
	L      *lua.LState
	ctx    context.Context
	name   string
	logger *slog.Logger

	// lastErr is the most recent Go error raised into Lua, kept so its sentinel
	// survives the trip through the interpreter.
	lastErr error
}

func (e *Engine) newRun(ctx context.Context, name string) *run {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	L.SetContext(ctx)

	r := &run{
		engine: e,
		L:      L,
		ctx:    ctx,
		name:   name,
		logger: e.logger.With("script", name),
	}
	r.registerViews()
	r.registerConsole()

	for global, values := range e.values {
		switch len(values) {
		case 0:
			L.SetGlobal(global, lua.LNil)
		case 1:
			L.SetGlobal(global, lua.LNumber(values[0]))
		default:
			tbl := L.CreateTable(len(values), 0)
			for _, v := range values {
				tbl.Append(lua.LNumber(v))
			}
			L.SetGlobal(global, tbl)
		}
	}
	return r
}

// raise records err and raises it as a Lua error. It never returns normally.
func (r *run) raise(err error) int {
	r.lastErr = err
	r.L.RaiseError("%s", err.Error())
	return 0
}

// wrap converts an interpreter error into an *Error.
func (r *run) wrap(err error) error {
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return &Error{File: r.name, Message: "interrupted", cause: ctxErr}
	}

	raw := err.Error()
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		raw = apiErr.Object.String()
	}

	var cause error
	if r.lastErr != nil && strings.Contains(raw, r.lastErr.Error()) {
		cause = r.lastErr
	}
	return newError(r.name, raw, cause)
}

// bindNamespace installs the namespace table under every configured global.
func (r *run) bindNamespace(ns accessor.Namespace) {
	L := r.L
	tbl := L.NewTable()

	// Both Session.item(p) and Session:item(p) are accepted.
	arg := func(n int) lua.LValue {
		if L.Get(1) == tbl {
			return L.Get(n + 1)
		}
		return L.Get(n)
	}
	path := func(n int) string {
		v := arg(n)
		if v == lua.LNil {
			return ""
		}
		if _, ok := v.(lua.LString); !ok {
			if _, ok := v.(lua.LNumber); !ok {
				r.raise(fmt.Errorf("%w: path must be a string, got %s", domain.ErrInvalidOperation, v.Type()))
			}
		}
		return lua.LVAsString(v)
	}

	L.SetFuncs(tbl, map[string]lua.LGFunction{
		"getItems": func(L *lua.LState) int {
			root, err := ns.GetItems(r.ctx)
			if err != nil {
				return r.raise(err)
			}
			L.Push(r.listView(root))
			return 1
		},
		"updateItems": func(L *lua.LState) int {
			if err := ns.UpdateItems(r.ctx); err != nil {
				return r.raise(err)
			}
			return 0
		},
		"item": func(L *lua.LState) int {
			p := domain.ParsePath(path(1))
			if p.IsRoot() {
				root, err := ns.GetItems(r.ctx)
				if err != nil {
					return r.raise(err)
				}
				L.Push(r.listView(root))
				return 1
			}
			node, err := ns.Item(r.ctx, p.String())
			if err != nil {
				return r.raise(err)
			}
			L.Push(r.toLua(node))
			return 1
		},
		"addItem": func(L *lua.LState) int {
			p := path(1)
			template, err := toNode(arg(2))
			if err != nil {
				return r.raise(err)
			}
			node, err := ns.AddItem(r.ctx, p, template)
			if err != nil {
				return r.raise(err)
			}
			L.Push(r.nodeView(node))
			return 1
		},
		"deleteItem": func(L *lua.LState) int {
			if err := ns.DeleteItem(r.ctx, path(1)); err != nil {
				return r.raise(err)
			}
			return 0
		},
	})

	var functions map[string]ports.HostFunc
	if provider, ok := ns.Host().(ports.FunctionProvider); ok {
		functions = provider.HostFunctions()
	}

	meta := L.NewTable()
	L.SetField(meta, "__index", L.NewFunction(func(L *lua.LState) int {
		fn, ok := functions[L.CheckString(2)]
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(L.NewFunction(func(L *lua.LState) int {
			args := make([]any, 0, L.GetTop())
			for i := 1; i <= L.GetTop(); i++ {
				if i == 1 && L.Get(1) == tbl {
					continue
				}
				args = append(args, fromLua(L.Get(i)))
			}
			result, err := fn(r.ctx, args...)
			if err != nil {
				return r.raise(err)
			}
			L.Push(r.toLua(result))
			return 1
		}))
		return 1
	}))
	L.SetMetatable(tbl, meta)

	for _, name := range r.engine.globals {
		L.SetGlobal(name, tbl)
	}
}
