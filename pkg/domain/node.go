package domain

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/mitchellh/mapstructure"
)

// Reserved attribute keys. Every other key is a domain attribute opaque to the bridge.
const (
	KeyName  = "name"
	KeyItems = "items"
	KeyID    = "id"
	KeyType  = "type"
)

// Node is one element of the document tree (a buffer, stream, call, group...).
//
// Items is nil for nodes that are not containers. An empty, non-nil Items means
// "container without children" and is preserved through serialization.
type Node struct {
	Name  string         `mapstructure:"name"`
	Items []*Node        `mapstructure:"items"`
	Attrs map[string]any `mapstructure:",remain"`
}

// NewNode creates a node with the given name and attributes.
func NewNode(name string, attrs map[string]any) *Node {
	n := &Node{Name: name, Attrs: make(map[string]any, len(attrs))}
	maps.Copy(n.Attrs, attrs)
	return n
}

// NewContainer creates a node with an empty items list.
func NewContainer(name string, attrs map[string]any) *Node {
	n := NewNode(name, attrs)
	n.Items = []*Node{}
	return n
}

// NodeFromMap builds a node from a loosely typed object, as received from scripts,
// JSON bodies or document stores. Nested "items" are decoded recursively.
func NodeFromMap(m map[string]any) (*Node, error) {
	n := &Node{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return nil, fmt.Errorf("failed to decode node: %w", err)
	}
	normalize(n, m)
	return n, nil
}

// normalize restores what the decoder cannot express: non-nil Attrs everywhere and
// empty (rather than absent) item lists.
func normalize(n *Node, raw map[string]any) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	rawItems, ok := raw[KeyItems]
	if !ok || rawItems == nil {
		return
	}
	if n.Items == nil {
		n.Items = []*Node{}
	}
	var children []map[string]any
	switch list := rawItems.(type) {
	case []any:
		for _, v := range list {
			child, _ := v.(map[string]any)
			children = append(children, child)
		}
	case []map[string]any:
		children = list
	}
	for i, child := range n.Items {
		if child == nil {
			continue
		}
		if i < len(children) && children[i] != nil {
			normalize(child, children[i])
		} else if child.Attrs == nil {
			child.Attrs = make(map[string]any)
		}
	}
}

// NodesFromMaps decodes a list of loosely typed objects.
func NodesFromMaps(list []map[string]any) ([]*Node, error) {
	nodes := make([]*Node, 0, len(list))
	for i, m := range list {
		n, err := NodeFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// ToMap returns the flat object form of the node, recursing into items.
func (n *Node) ToMap() map[string]any {
	m := make(map[string]any, len(n.Attrs)+2)
	for k, v := range n.Attrs {
		m[k] = cloneValue(v)
	}
	m[KeyName] = n.Name
	if n.Items != nil {
		items := make([]any, 0, len(n.Items))
		for _, child := range n.Items {
			if child == nil {
				items = append(items, nil)
				continue
			}
			items = append(items, child.ToMap())
		}
		m[KeyItems] = items
	}
	return m
}

// NodesToMaps converts a list of nodes into their object form.
func NodesToMaps(nodes []*Node) []map[string]any {
	list := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			list = append(list, n.ToMap())
		}
	}
	return list
}

// MarshalJSON flattens Attrs next to name and items.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.ToMap())
}

// UnmarshalJSON reads the flat object form.
func (n *Node) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	decoded, err := NodeFromMap(m)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

// Get returns a domain attribute.
func (n *Node) Get(key string) (any, bool) {
	v, ok := n.Attrs[key]
	return v, ok
}

// Set assigns a domain attribute. Setting nil removes it.
func (n *Node) Set(key string, value any) {
	if value == nil {
		delete(n.Attrs, key)
		return
	}
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	n.Attrs[key] = value
}

// Type returns the "type" attribute, if it is a string.
func (n *Node) Type() string {
	t, _ := n.Attrs[KeyType].(string)
	return t
}

// ID returns the numeric "id" attribute assigned by the host.
func (n *Node) ID() (int64, bool) {
	switch v := n.Attrs[KeyID].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	}
	return 0, false
}

// Child returns the first direct child with the given name.
func (n *Node) Child(name string) *Node {
	for _, child := range n.Items {
		if child != nil && child.Name == name {
			return child
		}
	}
	return nil
}

// Clone returns a deep copy of the node and its items.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Name: n.Name, Attrs: make(map[string]any, len(n.Attrs))}
	for k, v := range n.Attrs {
		c.Attrs[k] = cloneValue(v)
	}
	if n.Items != nil {
		c.Items = CloneNodes(n.Items)
	}
	return c
}

// CloneNodes deep-copies a list of nodes.
func CloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Walk visits every node of the list depth-first, in insertion order.
// Returning false from fn stops the walk.
func Walk(nodes []*Node, fn func(*Node) bool) bool {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if !fn(n) {
			return false
		}
		if !Walk(n.Items, fn) {
			return false
		}
	}
	return true
}

// RemoveByID removes the first node carrying the given id, anywhere in the tree.
// It reports whether a node was removed.
func RemoveByID(nodes *[]*Node, id int64) bool {
	for i, n := range *nodes {
		if n == nil {
			continue
		}
		if nid, ok := n.ID(); ok && nid == id {
			*nodes = append((*nodes)[:i], (*nodes)[i+1:]...)
			return true
		}
		if RemoveByID(&n.Items, id) {
			return true
		}
	}
	return false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}
