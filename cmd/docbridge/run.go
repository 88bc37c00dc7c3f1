package main

import (
	"os"

	"github.com/aretw0/docbridge/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <document> <script.lua>",
	Short: "Run a Lua script against a document as one turn",
	Long: `Runs the script with the document exposed as Session (and gpupad). The turn is
flushed if the script succeeds and discarded if it fails.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		diff, _ := cmd.Flags().GetBool("diff")

		app, err := openApp(cmd, os.Stdout)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Execute(ctx, app, cli.RunOptions{
			Document:   args[0],
			ScriptPath: args[1],
			Watch:      watch,
			Diff:       diff,
			Color:      isTerminal(os.Stdout),
			Out:        os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("watch", "w", false, "Re-run the script whenever it changes")
	runCmd.Flags().Bool("diff", false, "Print a unified diff of the document after the turn")
}
