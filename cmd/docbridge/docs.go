package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage stored documents",
}

var docsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List document IDs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer app.Close()

		ids, err := app.Bridge.Manager().List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var docsRemoveCmd = &cobra.Command{
	Use:     "rm <document>...",
	Aliases: []string{"remove"},
	Short:   "Delete documents",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer app.Close()

		for _, id := range args {
			if err := app.Bridge.Manager().Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	},
}

var docsInitCmd = &cobra.Command{
	Use:   "init <document>...",
	Short: "Create empty documents (existing ones are left alone)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer app.Close()

		for _, id := range args {
			doc, err := app.Bridge.Manager().LoadOrCreate(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (revision %d, %d items)\n", id, doc.Revision, len(doc.Items))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsListCmd, docsRemoveCmd, docsInitCmd)
}
