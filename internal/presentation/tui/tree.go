package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/docbridge/pkg/domain"
)

// TreeMarkdown renders a document as a nested markdown list: one bullet per node,
// with its type and remaining attributes inline.
func TreeMarkdown(doc *domain.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", doc.ID)
	fmt.Fprintf(&sb, "_revision %d, %d top-level items_\n\n", doc.Revision, len(doc.Items))
	if len(doc.Items) == 0 {
		sb.WriteString("_(empty)_\n")
		return sb.String()
	}
	writeNodes(&sb, doc.Items, 0)
	return sb.String()
}

// NodeMarkdown renders one node and its subtree.
func NodeMarkdown(path string, node *domain.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", path)
	writeNodes(&sb, []*domain.Node{node}, 0)
	return sb.String()
}

func writeNodes(sb *strings.Builder, nodes []*domain.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		if n == nil {
			continue
		}
		fmt.Fprintf(sb, "%s- **%s**", indent, escape(n.Name))
		if t := n.Type(); t != "" {
			fmt.Fprintf(sb, " _%s_", escape(t))
		}
		if attrs := inlineAttrs(n); attrs != "" {
			fmt.Fprintf(sb, " %s", attrs)
		}
		sb.WriteString("\n")
		writeNodes(sb, n.Items, depth+1)
	}
}

func inlineAttrs(n *domain.Node) string {
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		if k == domain.KeyType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(n.Attrs[k])
		if err != nil {
			v = []byte(fmt.Sprint(n.Attrs[k]))
		}
		parts = append(parts, fmt.Sprintf("`%s=%s`", k, v))
	}
	return strings.Join(parts, " ")
}

var mdEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`")

func escape(s string) string {
	return mdEscaper.Replace(s)
}
