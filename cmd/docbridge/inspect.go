package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/docbridge/internal/presentation/graph"
	"github.com/aretw0/docbridge/internal/presentation/tui"
	"github.com/aretw0/docbridge/pkg/accessor"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <document> [path]",
	Short: "Show a document or one of its items",
	Long: `Prints the persisted tree. Output is rendered Markdown on a terminal, raw
Markdown otherwise, or JSON / a Mermaid diagram when asked.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		asMermaid, _ := cmd.Flags().GetBool("mermaid")

		app, err := openApp(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer app.Close()

		doc, err := app.Bridge.Snapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var path string
		var node *domain.Node
		if len(args) == 2 {
			path = args[1]
			p := domain.ParsePath(path)
			if !p.IsRoot() {
				node = accessor.Find(&domain.Node{Items: doc.Items}, p)
				if node == nil {
					return fmt.Errorf("item %q not found in %s", path, args[0])
				}
			}
		}

		out := cmd.OutOrStdout()
		switch {
		case asJSON:
			var v any = doc
			if node != nil {
				v = node
			}
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))

		case asMermaid:
			items := doc.Items
			if node != nil {
				items = []*domain.Node{node}
			}
			fmt.Fprint(out, graph.GenerateMermaid(items, nil))

		default:
			markdown := tui.TreeMarkdown(doc)
			if node != nil {
				markdown = tui.NodeMarkdown(path, node)
			}
			if isTerminal(os.Stdout) {
				if rendered, err := tui.NewRenderer()(markdown); err == nil {
					markdown = rendered
				}
			}
			fmt.Fprint(out, markdown)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("json", false, "Print JSON")
	inspectCmd.Flags().Bool("mermaid", false, "Print a Mermaid flowchart")
}
