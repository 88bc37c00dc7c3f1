package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/docbridge"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of docbridge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "docbridge version %s\n", strings.TrimSpace(docbridge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
