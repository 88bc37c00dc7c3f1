package cli

import (
	"context"
	"io"

	"github.com/aretw0/docbridge"
	"github.com/aretw0/docbridge/internal/presentation/tui"
)

// ConsoleOptions configures the interactive console.
type ConsoleOptions struct {
	Document string
	Headless bool
	In       io.Reader
	Out      io.Writer
}

// RunConsole runs every input line as one script turn until EOF, exit or ctx is done.
func RunConsole(ctx context.Context, app *App, opts ConsoleOptions) error {
	r := docbridge.NewRunner(opts.Document)
	r.Input = NewInterruptibleReader(opts.In, ctx.Done())
	r.Output = opts.Out
	r.Headless = opts.Headless
	if !opts.Headless {
		tui.PrintBanner(opts.Out)
		r.Renderer = tui.NewRenderer()
	}

	app.Logger.Debug("Console started", "document_id", opts.Document)
	return handleExecutionError(r.Run(ctx, app.Bridge))
}
