package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/docbridge/internal/presentation/tui"
)

// RunOptions contains the configuration for the run command.
type RunOptions struct {
	Document   string
	ScriptPath string
	Watch      bool
	Diff       bool
	Color      bool
	Out        io.Writer
}

// Execute runs the script once, or keeps re-running it on change in watch mode.
func Execute(ctx context.Context, app *App, opts RunOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Watch {
		return RunWatch(ctx, app, opts)
	}
	return RunScript(ctx, app, opts)
}

// RunScript executes the script file as one turn and, with Diff set, prints what
// the turn changed.
func RunScript(ctx context.Context, app *App, opts RunOptions) error {
	source, err := os.ReadFile(opts.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	if !opts.Diff {
		return app.Bridge.RunScript(ctx, opts.Document, string(source), filepath.Base(opts.ScriptPath))
	}

	change, err := app.Bridge.RunScriptDiff(ctx, opts.Document, string(source), filepath.Base(opts.ScriptPath))
	if err != nil {
		return err
	}

	diff, err := tui.UnifiedDiff(opts.Document, change.Before.Items, change.After.Items)
	if err != nil {
		return err
	}
	if diff == "" {
		printSystemMessage(opts.Out, "No changes to '%s'.", opts.Document)
		return nil
	}
	if opts.Color {
		diff = tui.Colorize(diff)
	}
	fmt.Fprint(opts.Out, diff)
	return nil
}
