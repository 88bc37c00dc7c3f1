package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/docbridge/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "docbridge",
	Short: "docbridge runs scripts against persistent document trees",
	Long: `docbridge keeps hierarchical documents in a store and lets Lua scripts read and
edit them through a per-turn cached tree of items.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".", "Project directory (holds docbridge.yaml and tools.yaml)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default <dir>/docbridge.yaml)")
	rootCmd.PersistentFlags().String("store", "", "Store backend override (memory, file, redis, sqlite, loam)")
	rootCmd.PersistentFlags().String("store-path", "", "Store path override")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}

// openApp builds the App from the persistent flags. Script output goes to out.
func openApp(cmd *cobra.Command, out io.Writer) (*cli.App, error) {
	flags := cmd.Flags()
	dir, _ := flags.GetString("dir")
	configPath, _ := flags.GetString("config")
	backend, _ := flags.GetString("store")
	storePath, _ := flags.GetString("store-path")
	debug, _ := flags.GetBool("debug")

	return cli.Open(cli.Options{
		Dir:        dir,
		ConfigPath: configPath,
		Backend:    backend,
		StorePath:  storePath,
		Debug:      debug,
		Output:     out,
	})
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
