package docbridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Runner is an interactive script console: every line read from Input runs as one
// turn against Document, and errors are reported without ending the session.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Document string
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer transforms a message before it is written, so frontends can
// style output without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner for docID. Input and Output must be set before Run.
func NewRunner(docID string) *Runner {
	return &Runner{Document: docID}
}

// Run reads lines until EOF, "exit" or "quit", or until ctx is done.
func (r *Runner) Run(ctx context.Context, bridge *Bridge) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)

	if !r.Headless {
		r.print(fmt.Sprintf("docbridge %s console on %q. Type exit to quit.", Version, r.Document))
	}

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}

		text, err := lineReader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("input error: %w", err)
		}
		input := strings.TrimSpace(text)

		switch {
		case input == "exit" || input == "quit":
			if !r.Headless {
				r.print("Bye!")
			}
			return nil
		case input != "":
			if runErr := bridge.RunScript(ctx, r.Document, input, fmt.Sprintf("console-%d", line)); runErr != nil {
				r.print(runErr.Error())
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

func (r *Runner) print(msg string) {
	if r.Renderer != nil {
		if rendered, err := r.Renderer(msg); err == nil {
			msg = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(msg))
}
