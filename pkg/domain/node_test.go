package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeFromMap(t *testing.T) {
	n, err := NodeFromMap(map[string]any{
		"name": "Mesh",
		"type": "Group",
		"items": []any{
			map[string]any{"name": "Vertices", "type": "Buffer", "items": []any{}},
			map[string]any{"name": "Draw", "count": 3.0},
		},
	})
	require.NoError(t, err)

	want := &Node{
		Name:  "Mesh",
		Attrs: map[string]any{"type": "Group"},
		Items: []*Node{
			{Name: "Vertices", Attrs: map[string]any{"type": "Buffer"}, Items: []*Node{}},
			{Name: "Draw", Attrs: map[string]any{"count": 3.0}},
		},
	}
	if diff := cmp.Diff(want, n); diff != "" {
		t.Errorf("NodeFromMap mismatch (-want +got):\n%s", diff)
	}
}

func TestNodeFromMap_WeakName(t *testing.T) {
	n, err := NodeFromMap(map[string]any{"name": 42})
	require.NoError(t, err)
	assert.Equal(t, "42", n.Name)
	assert.NotNil(t, n.Attrs)
	assert.Nil(t, n.Items, "non-containers keep items absent")
}

func TestNode_JSONRoundTrip(t *testing.T) {
	mesh := NewContainer("Mesh", map[string]any{"type": "Group"})
	mesh.Items = append(mesh.Items, NewNode("Vertices", map[string]any{"type": "Buffer"}))
	mesh.Items = append(mesh.Items, NewContainer("Empty", nil))

	data, err := json.Marshal(mesh)
	require.NoError(t, err)

	var decoded Node
	require.NoError(t, json.Unmarshal(data, &decoded))

	if diff := cmp.Diff(mesh, &decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, decoded.Child("Empty").Items, "empty item lists survive serialization")
	assert.Nil(t, decoded.Child("Vertices").Items)
}

func TestNode_ID(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int64
		ok    bool
	}{
		{"int", 3, 3, true},
		{"int64", int64(4), 4, true},
		{"float64", 5.0, 5, true},
		{"json.Number", json.Number("6"), 6, true},
		{"string", "7", 0, false},
		{"missing", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNode("n", nil)
			n.Set(KeyID, tt.value)
			id, ok := n.ID()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestNode_CloneIsDeep(t *testing.T) {
	orig := NewContainer("Group", map[string]any{"tags": []any{"a"}})
	orig.Items = append(orig.Items, NewNode("Child", map[string]any{"x": 1}))

	c := orig.Clone()
	c.Items[0].Set("x", 2)
	c.Attrs["tags"].([]any)[0] = "b"
	c.Items = append(c.Items, NewNode("Other", nil))

	assert.Equal(t, 1, orig.Items[0].Attrs["x"])
	assert.Equal(t, "a", orig.Attrs["tags"].([]any)[0])
	assert.Len(t, orig.Items, 1)
}

func TestRemoveByID(t *testing.T) {
	nested := NewNode("Nested", map[string]any{"id": 3})
	group := NewContainer("Group", map[string]any{"id": 1})
	group.Items = append(group.Items, NewNode("Sibling", map[string]any{"id": 2}), nested)
	items := []*Node{group}

	assert.True(t, RemoveByID(&items, 3))
	assert.Nil(t, group.Child("Nested"))
	assert.NotNil(t, group.Child("Sibling"))
	assert.False(t, RemoveByID(&items, 3))

	assert.True(t, RemoveByID(&items, 1))
	assert.Empty(t, items)
}

func TestDocument_AssignIDs(t *testing.T) {
	doc := NewDocument("d")
	group := NewContainer("Group", nil)
	group.Items = append(group.Items, NewNode("Child", nil))
	doc.Items = append(doc.Items, group, NewNode("Known", map[string]any{"id": 7.0}))

	assigned := doc.AssignIDs()

	assert.Equal(t, 2, assigned)
	gid, _ := group.ID()
	cid, _ := group.Items[0].ID()
	assert.Equal(t, int64(8), gid, "ids start past the highest existing id")
	assert.Equal(t, int64(9), cid)
	assert.Equal(t, int64(10), doc.NextID)
	assert.Zero(t, doc.AssignIDs())
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in     string
		want   Path
		parent string
		base   string
	}{
		{"", Path{}, "", ""},
		{"a", Path{"a"}, "", "a"},
		{"a/b/c", Path{"a", "b", "c"}, "a/b", "c"},
		{"a//b", Path{"a", "", "b"}, "a/", "b"},
		{"a/", Path{"a", ""}, "a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := ParsePath(tt.in)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.in, p.String())
			assert.Equal(t, tt.parent, p.Parent().String())
			assert.Equal(t, tt.base, p.Base())
			assert.Equal(t, tt.in == "", p.IsRoot())
		})
	}
}
