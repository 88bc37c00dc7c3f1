package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/docbridge/internal/config"
	"github.com/aretw0/docbridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func openApp(t *testing.T, opts Options) *App {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	app, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestOpen_Backends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendFile, config.BackendSQLite, config.BackendLoam} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			app := openApp(t, Options{Dir: dir, Backend: backend})
			ctx := context.Background()

			require.NoError(t, app.Bridge.RunScript(ctx, "scene", `Session.addItem("Mesh", { type = "Group" })`, "add.lua"))

			ids, err := app.Store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"scene"}, ids)

			if backend != config.BackendMemory {
				reopened := openApp(t, Options{Dir: dir, Backend: backend})
				doc, err := reopened.Store.Load(ctx, "scene")
				require.NoError(t, err)
				assert.Equal(t, "Mesh", doc.Items[0].Name, "documents persist across opens")
			}
		})
	}
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultFileName), `
store:
  backend: redis
redis:
  addr: `+mr.Addr()+`
  prefix: "test:"
  lock: true
  lock_ttl: 5s
`)

	app := openApp(t, Options{Dir: dir})
	require.NoError(t, app.Bridge.RunScript(context.Background(), "scene", `Session.addItem("a", {})`, "a.lua"))
	assert.True(t, mr.Exists("test:scene"))
	assert.False(t, mr.Exists("test:lock:scene"), "the lock is released after the turn")
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(Options{Dir: t.TempDir(), Backend: "tape"})
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestOpen_ScriptSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultFileName), `
store:
  backend: memory
script:
  globals: [Doc]
  values:
    scale: [2]
`)
	var out bytes.Buffer
	app := openApp(t, Options{Dir: dir, Output: &out})

	err := app.Bridge.RunScript(context.Background(), "scene", `console.log(scale, Doc.documentId())`, "s.lua")
	require.NoError(t, err)
	assert.Equal(t, "2 scene\n", out.String())
}

func TestRunScript_Diff(t *testing.T) {
	dir := t.TempDir()
	app := openApp(t, Options{Dir: dir, Backend: config.BackendMemory})
	script := writeFile(t, filepath.Join(dir, "mesh.lua"), `Session.addItem("Mesh", { type = "Group" })`)

	var out bytes.Buffer
	err := Execute(context.Background(), app, RunOptions{Document: "scene", ScriptPath: script, Diff: true, Out: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "+++ scene (after)")
	assert.Contains(t, out.String(), `+    "name": "Mesh"`)

	out.Reset()
	noop := writeFile(t, filepath.Join(dir, "noop.lua"), `local x = Session.item("Mesh")`)
	require.NoError(t, Execute(context.Background(), app, RunOptions{Document: "scene", ScriptPath: noop, Diff: true, Out: &out}))
	assert.Contains(t, out.String(), "No changes")
}

func TestRunScript_Errors(t *testing.T) {
	dir := t.TempDir()
	app := openApp(t, Options{Dir: dir, Backend: config.BackendMemory})

	err := RunScript(context.Background(), app, RunOptions{Document: "scene", ScriptPath: filepath.Join(dir, "missing.lua")})
	assert.ErrorContains(t, err, "failed to read script")

	bad := writeFile(t, filepath.Join(dir, "bad.lua"), `Session.deleteItem("nope")`)
	err = RunScript(context.Background(), app, RunOptions{Document: "scene", ScriptPath: bad})
	assert.ErrorContains(t, err, "bad.lua")
}

func TestOpen_ProcessTools(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tools.yaml"), `
tools:
  - name: greet
    command: sh
    args: ["-c", "echo hi"]
`)
	app := openApp(t, Options{Dir: dir, Backend: config.BackendMemory})
	assert.Equal(t, []string{"greet"}, app.Tools.Names())
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, filepath.Join(dir, "watch.lua"), "-- v1")
	writeFile(t, filepath.Join(dir, "other.lua"), "-- other")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := WatchFile(ctx, script, 20*time.Millisecond, logging.NewNop())
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "other.lua"), "-- ignored")
	writeFile(t, script, "-- v2")
	writeFile(t, script, "-- v3")

	select {
	case path := <-changes:
		abs, _ := filepath.Abs(script)
		assert.Equal(t, abs, path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-changes
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunWatch(t *testing.T) {
	dir := t.TempDir()
	app := openApp(t, Options{Dir: dir, Backend: config.BackendMemory})
	script := writeFile(t, filepath.Join(dir, "count.lua"), `Session.addItem("first", {})`)

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- RunWatch(ctx, app, RunOptions{Document: "scene", ScriptPath: script, Out: &out})
	}()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Waiting for changes") }, 5*time.Second, 10*time.Millisecond)
	writeFile(t, script, `Session.addItem("second", {})`)

	require.Eventually(t, func() bool {
		doc, err := app.Bridge.Snapshot(context.Background(), "scene")
		return err == nil && len(doc.Items) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRunConsole(t *testing.T) {
	app := openApp(t, Options{Backend: config.BackendMemory})
	var out bytes.Buffer

	err := RunConsole(context.Background(), app, ConsoleOptions{
		Document: "scene",
		Headless: true,
		In:       strings.NewReader("Session.addItem(\"a\", {})\nSession.deleteItem(\"zzz\")\nexit\n"),
		Out:      &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "invalid operation")

	doc, err := app.Bridge.Snapshot(context.Background(), "scene")
	require.NoError(t, err)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "a", doc.Items[0].Name)
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(context.Canceled))
	assert.NoError(t, handleExecutionError(errInterrupted))
	assert.Error(t, handleExecutionError(os.ErrNotExist))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestOpen_EncryptedRedactedStore(t *testing.T) {
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
	writeFile(t, filepath.Join(dir, config.DefaultFileName), `
store:
  backend: file
  path: docs
  encryption_key: `+key+`
  redact: ["password"]
`)

	app := openApp(t, Options{Dir: dir})
	ctx := context.Background()
	require.NoError(t, app.Bridge.RunScript(ctx, "scene",
		`Session.addItem("Db", { host = "visible-host", password = "hunter2" })`, "db.lua"))

	doc, err := app.Bridge.Snapshot(ctx, "scene")
	require.NoError(t, err)
	assert.Equal(t, "visible-host", doc.Items[0].Attrs["host"])
	assert.Equal(t, "***", doc.Items[0].Attrs["password"])

	raw, err := os.ReadFile(filepath.Join(dir, "docs", "scene.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "visible-host")
	assert.NotContains(t, string(raw), "hunter2")
}

func TestOpen_Schemas(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultFileName), `
store:
  backend: memory
schemas:
  Buffer:
    stride: int
    format: string?
`)
	app := openApp(t, Options{Dir: dir})
	ctx := context.Background()

	require.NoError(t, app.Bridge.RunScript(ctx, "scene", `Session.addItem("V", { type = "Buffer", stride = 12 })`, "ok.lua"))

	err := app.Bridge.RunScript(ctx, "scene", `Session.addItem("W", { type = "Buffer", stride = "wide" })`, "bad.lua")
	require.Error(t, err)
	assert.ErrorContains(t, err, "schema violation")
	assert.ErrorContains(t, err, `attribute "stride"`)

	doc, err := app.Store.Load(ctx, "scene")
	require.NoError(t, err)
	assert.Len(t, doc.Items, 1, "the rejected turn is not flushed")
}
