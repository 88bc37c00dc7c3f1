package domain

import (
	"reflect"
	"sort"
)

// TreeDiff represents the changes between two versions of a document tree.
// Nodes are identified by their path; it is designed to be serialized to JSON.
type TreeDiff struct {
	// Added lists paths present only in the new tree.
	Added []string `json:"added,omitempty"`

	// Removed lists paths present only in the old tree.
	Removed []string `json:"removed,omitempty"`

	// Changed maps a path to its attribute delta. Deleted attributes are present
	// with a nil value.
	Changed map[string]map[string]any `json:"changed,omitempty"`
}

// Diff calculates the difference between two top-level collections.
// If oldItems is nil, every node of newItems is reported as added (initial load).
func Diff(oldItems, newItems []*Node) *TreeDiff {
	oldIndex := indexPaths(oldItems)
	newIndex := indexPaths(newItems)

	diff := &TreeDiff{}
	for path, newNode := range newIndex {
		oldNode, exists := oldIndex[path]
		if !exists {
			diff.Added = append(diff.Added, path)
			continue
		}
		if delta := diffAttrs(oldNode, newNode); delta != nil {
			if diff.Changed == nil {
				diff.Changed = make(map[string]map[string]any)
			}
			diff.Changed[path] = delta
		}
	}
	for path := range oldIndex {
		if _, exists := newIndex[path]; !exists {
			diff.Removed = append(diff.Removed, path)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	return diff
}

// IsEmpty checks if the diff contains any changes.
func (d *TreeDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// indexPaths maps each path to its node. Shadowed duplicate names keep the
// first match, the same one path resolution returns.
func indexPaths(nodes []*Node) map[string]*Node {
	index := make(map[string]*Node)
	var walk func(prefix Path, nodes []*Node)
	walk = func(prefix Path, nodes []*Node) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			p := prefix.Join(n.Name)
			key := p.String()
			if _, seen := index[key]; seen {
				continue
			}
			index[key] = n
			walk(p, n.Items)
		}
	}
	walk(Path{}, nodes)
	return index
}

func diffAttrs(old, new *Node) map[string]any {
	delta := make(map[string]any)

	for k, newVal := range new.Attrs {
		oldVal, exists := old.Attrs[k]
		if !exists || !reflect.DeepEqual(normalizeNumber(oldVal), normalizeNumber(newVal)) {
			delta[k] = newVal
		}
	}
	for k := range old.Attrs {
		if _, exists := new.Attrs[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// normalizeNumber folds the integer types stores and scripts produce into float64,
// so that 1 and 1.0 compare equal after a JSON round-trip.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}
