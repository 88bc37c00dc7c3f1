package main

import (
	"os"

	"github.com/aretw0/docbridge/internal/cli"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console <document>",
	Short: "Interactive script console; every line runs as one turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")

		app, err := openApp(cmd, os.Stdout)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.RunConsole(ctx, app, cli.ConsoleOptions{
			Document: args[0],
			Headless: headless || !isTerminal(os.Stdin),
			In:       os.Stdin,
			Out:      os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().Bool("headless", false, "No banner or prompts (implied when stdin is not a terminal)")
}
