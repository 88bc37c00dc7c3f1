package accessor

import "github.com/aretw0/docbridge/pkg/domain"

// Find walks the path from the root collection. Each segment selects the first
// sibling with that name; a missing match, or a node without items before the
// last segment, yields nil.
func Find(root *domain.Node, path domain.Path) *domain.Node {
	if path.IsRoot() {
		return root
	}
	node := root
	for _, segment := range path {
		node = node.Child(segment)
		if node == nil {
			return nil
		}
	}
	return node
}
