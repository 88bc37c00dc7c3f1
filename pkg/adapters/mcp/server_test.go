package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/docbridge"
	"github.com/aretw0/docbridge/pkg/adapters/memory"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store, err := memory.NewStoreFromJSON(map[string]string{
		"scene": `[{"name":"Mesh","type":"Group","items":[{"name":"Vertices","type":"Buffer"}]},{"name":"Leaf"}]`,
	})
	require.NoError(t, err)
	return NewServer(docbridge.New(store)), store
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	content, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return content.Text
}

func TestListDocuments(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleListDocuments(context.Background(), call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `["scene"]`, text(t, res))
}

func TestGetItem(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetItem(ctx, call(map[string]any{"document": "scene", "path": "Mesh/Vertices"}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	var node map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &node))
	assert.Equal(t, "Vertices", node["name"])

	res, err = s.handleGetItem(ctx, call(map[string]any{"document": "scene"}))
	require.NoError(t, err)
	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &items))
	assert.Len(t, items, 2)

	res, err = s.handleGetItem(ctx, call(map[string]any{"document": "scene", "path": "Nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetItem(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "document is required")
}

func TestAddAndDeleteItem(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleAddItem(ctx, call(map[string]any{
		"document": "scene",
		"path":     "Mesh/Index",
		"template": `{"type":"Buffer"}`,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	doc, err := store.Load(ctx, "scene")
	require.NoError(t, err)
	require.Len(t, doc.Items[0].Items, 2)
	assert.Equal(t, "Index", doc.Items[0].Items[1].Name)
	assert.Equal(t, "Buffer", doc.Items[0].Items[1].Type())

	res, err = s.handleAddItem(ctx, call(map[string]any{"document": "scene", "path": "Missing/Index"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), domain.ErrInvalidOperation.Error())

	res, err = s.handleAddItem(ctx, call(map[string]any{"document": "scene", "path": "X", "template": "{"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleDeleteItem(ctx, call(map[string]any{"document": "scene", "path": "Leaf"}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	doc, err = store.Load(ctx, "scene")
	require.NoError(t, err)
	assert.Len(t, doc.Items, 1)
}

func TestRunScript(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRunScript(ctx, call(map[string]any{
		"document": "scene",
		"source":   `Session.addItem("Missing/Child", {})`,
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "the parent must exist")
	assert.Contains(t, text(t, res), domain.ErrInvalidOperation.Error())

	res, err = s.handleRunScript(ctx, call(map[string]any{
		"document": "scene",
		"source":   `Session.addItem("Extra", {type = "Call"})`,
		"name":     "extra.lua",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	var diff domain.TreeDiff
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &diff))
	assert.Equal(t, []string{"Extra"}, diff.Added)

	res, err = s.handleRunScript(ctx, call(map[string]any{"document": "scene", "source": "error('boom')", "name": "boom.lua"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "boom.lua:1")
}
