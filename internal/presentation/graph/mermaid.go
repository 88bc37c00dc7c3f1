package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/docbridge/pkg/domain"
)

// Overlay marks paths to highlight on the graph, typically from a domain.TreeDiff.
type Overlay struct {
	Added   []string
	Changed []string
}

// OverlayFromDiff highlights what a turn added and changed.
func OverlayFromDiff(d *domain.TreeDiff) *Overlay {
	if d == nil {
		return nil
	}
	o := &Overlay{Added: d.Added}
	for p := range d.Changed {
		o.Changed = append(o.Changed, p)
	}
	sort.Strings(o.Changed)
	return o
}

// GenerateMermaid produces a Mermaid flowchart of a document tree, edges going from
// parent to child. Shapes:
// - Document root: ((Circle))
// - Container (has items): [[Subroutine]]
// - Leaf: [Rectangle]
// Labels carry the node type when it has one.
func GenerateMermaid(items []*domain.Node, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    root((\"document\"))\n")

	seen := make(map[string]bool)
	var walk func(parentID string, prefix domain.Path, nodes []*domain.Node)
	walk = func(parentID string, prefix domain.Path, nodes []*domain.Node) {
		for _, node := range nodes {
			if node == nil {
				continue
			}
			p := prefix.Join(node.Name)
			id := nodeID(p.String())
			if seen[id] {
				// Shadowed duplicate: path resolution never reaches it.
				continue
			}
			seen[id] = true

			label := escapeLabel(node.Name)
			if t := node.Type(); t != "" {
				label = fmt.Sprintf("%s <br/> %s", label, escapeLabel(t))
			}
			opener, closer := "[", "]"
			if node.Items != nil {
				opener, closer = "[[", "]]"
			}
			sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", id, opener, label, closer))
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", parentID, id))

			walk(id, p, node.Items)
		}
	}
	walk("root", domain.Path{}, items)

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text stays readable on both themes.
		sb.WriteString("    classDef added fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef changed fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		writeClass(&sb, overlay.Added, "added", seen)
		writeClass(&sb, overlay.Changed, "changed", seen)
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, paths []string, class string, present map[string]bool) {
	for _, p := range paths {
		id := nodeID(p)
		// Removed nodes are not drawn.
		if present[id] {
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", id, class))
		}
	}
}

// nodeID derives a Mermaid-safe identifier from a path.
func nodeID(path string) string {
	var sb strings.Builder
	sb.WriteString("n_")
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteString(fmt.Sprintf("_%x_", r))
		}
	}
	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
