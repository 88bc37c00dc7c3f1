package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/docbridge/internal/config"
	"github.com/aretw0/docbridge/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <script.lua>...",
	Short: "Check scripts for syntax errors without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Compiling never touches documents.
		if err := cmd.Flags().Set("store", config.BackendMemory); err != nil {
			return err
		}
		app, err := openApp(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer app.Close()

		failed := 0
		for _, path := range args {
			source, err := os.ReadFile(path)
			if err == nil {
				err = app.Bridge.Validate(string(source), filepath.Base(path))
			}
			if err != nil {
				failed++
				fmt.Fprintln(cmd.OutOrStdout(), tui.Failure(err.Error()))
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Success(path))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scripts failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
