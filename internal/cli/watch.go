package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/docbridge/internal/presentation/tui"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// WatchFile emits the absolute path of file after each batch of writes to it.
// The parent directory is watched so editors that save by rename are seen too.
// The channel closes when ctx is done.
func WatchFile(ctx context.Context, file string, debounce time.Duration, logger *slog.Logger) (<-chan string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", file, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	changes := make(chan string, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				logger.Debug("Script event", "path", event.Name, "op", event.Op.String())
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error", "err", err)

			case <-fire:
				fire = nil
				select {
				case changes <- abs:
				default:
				}
			}
		}
	}()
	return changes, nil
}

// RunWatch runs the script, then runs it again on every change until ctx is done.
// Failures are reported and the watch goes on.
func RunWatch(ctx context.Context, app *App, opts RunOptions) error {
	changes, err := WatchFile(ctx, opts.ScriptPath, DefaultDebounce, app.Logger)
	if err != nil {
		return err
	}
	app.Logger.Info("Starting Watcher", "path", opts.ScriptPath, "document_id", opts.Document)

	runOnce := func() {
		if err := RunScript(ctx, app, opts); err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintln(opts.Out, tui.Failure(err.Error()))
			return
		}
		fmt.Fprintln(opts.Out, tui.Success(fmt.Sprintf("%s applied to '%s'", filepath.Base(opts.ScriptPath), opts.Document)))
	}

	runOnce()
	printSystemMessage(opts.Out, "Waiting for changes...")
	for {
		select {
		case <-ctx.Done():
			app.Logger.Info("Stopping watcher")
			return nil
		case path, ok := <-changes:
			if !ok {
				return nil
			}
			printSystemMessage(opts.Out, "Change detected in '%s'.", filepath.Base(path))
			runOnce()
		}
	}
}
