// Package process exposes allow-listed local commands to scripts as host functions.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/ports"
)

// EnvPrefix prefixes the environment variables that carry call arguments.
const EnvPrefix = "DOCBRIDGE_ARG_"

// DefaultGracePeriod is how long a cancelled command may take to exit after the
// interrupt before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Runner executes registered commands. Only names in the registry can run.
type Runner struct {
	registry map[string]ToolConfig
	baseDir  string
	grace    time.Duration
	logger   *slog.Logger
}

var _ ports.FunctionProvider = (*Runner)(nil)

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ToolConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.registry[name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.grace = d
	}
}

// WithLogger configures a logger for the runner.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ToolConfig),
		grace:    DefaultGracePeriod,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ToolConfig{Name: name, Command: command, Args: args}
}

// Names returns the registered tool names, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HostFunctions exposes every registered tool under its own name.
func (r *Runner) HostFunctions() map[string]ports.HostFunc {
	functions := make(map[string]ports.HostFunc, len(r.registry))
	for name := range r.registry {
		functions[name] = func(ctx context.Context, args ...any) (any, error) {
			return r.Call(ctx, name, args...)
		}
	}
	return functions
}

// Call runs the tool registered as name. Arguments never reach the command line:
// the keys of a leading table become DOCBRIDGE_ARG_<KEY> and every argument is
// also passed positionally as DOCBRIDGE_ARG_<N>. Stdout is decoded as JSON when
// it looks like an object or array and returned as trimmed text otherwise.
func (r *Runner) Call(ctx context.Context, name string, args ...any) (any, error) {
	tool, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: process tool not registered: %s", domain.ErrInvalidOperation, name)
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	cmd.Dir = r.baseDir
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.grace

	env := cmd.Environ()
	for k, v := range tool.Environment {
		env = append(env, k+"="+v)
	}
	cmd.Env = append(env, argEnv(args)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("Process tool finished", "tool", name, "duration", time.Since(start), "err", err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: tool %s interrupted: %w", domain.ErrHostIO, name, ctxErr)
		}
		return nil, fmt.Errorf("%w: tool %s failed: %v. Stderr: %s",
			domain.ErrHostIO, name, err, strings.TrimSpace(stderr.String()))
	}

	return decodeOutput(stdout.String()), nil
}

func argEnv(args []any) []string {
	var env []string
	if len(args) > 0 {
		if named, ok := args[0].(map[string]any); ok {
			for k, v := range named {
				env = append(env, EnvPrefix+strings.ToUpper(k)+"="+envValue(v))
			}
		}
	}
	for i, v := range args {
		env = append(env, EnvPrefix+strconv.Itoa(i+1)+"="+envValue(v))
	}
	return env
}

// envValue renders primitives with fmt and everything else as JSON.
func envValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}

func decodeOutput(output string) any {
	trimmed := strings.TrimSpace(output)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return trimmed
}
