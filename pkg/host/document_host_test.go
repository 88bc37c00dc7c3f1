package host_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/docbridge/pkg/adapters/memory"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/host"
	"github.com/aretw0/docbridge/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newHost(t *testing.T, docID string) (*host.DocumentHost, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return host.New(store, docID, host.WithClock(func() time.Time { return fixedNow })), store
}

func TestDocumentHost_MissingDocumentIsEmpty(t *testing.T) {
	h, store := newHost(t, "scene")

	items, err := h.FetchRoot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, err = store.Load(context.Background(), "scene")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound, "fetching must not create the document")
}

func TestDocumentHost_FlushAssignsIDs(t *testing.T) {
	h, store := newHost(t, "scene")
	ctx := context.Background()

	mesh := domain.NewContainer("Mesh", map[string]any{"type": "Group"})
	mesh.Items = append(mesh.Items, domain.NewNode("Vertices", map[string]any{"type": "Buffer"}))
	require.NoError(t, h.Flush(ctx, []*domain.Node{mesh}))

	doc, err := store.Load(ctx, "scene")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Revision)
	assert.Equal(t, int64(3), doc.NextID)
	assert.Equal(t, fixedNow, doc.UpdatedAt)

	id, ok := doc.Items[0].ID()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	id, ok = doc.Items[0].Items[0].ID()
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	// Ids are never reused, even after the nodes are gone.
	require.NoError(t, h.Flush(ctx, []*domain.Node{domain.NewNode("Texture", nil)}))
	doc, err = store.Load(ctx, "scene")
	require.NoError(t, err)
	id, _ = doc.Items[0].ID()
	assert.Equal(t, int64(3), id)
	assert.Equal(t, int64(2), doc.Revision)
}

func TestDocumentHost_RoundTrip(t *testing.T) {
	h, _ := newHost(t, "scene")
	ctx := context.Background()

	require.NoError(t, h.Flush(ctx, []*domain.Node{domain.NewNode("Mesh", map[string]any{"type": "Group"})}))

	items, err := h.FetchRoot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Mesh", items[0].Name)
	assert.Equal(t, "Group", items[0].Type())
}

func TestDocumentHost_DeleteNode(t *testing.T) {
	h, store := newHost(t, "scene")
	ctx := context.Background()

	mesh := domain.NewContainer("Mesh", nil)
	mesh.Items = append(mesh.Items, domain.NewNode("Vertices", nil), domain.NewNode("Draw", nil))
	require.NoError(t, h.Flush(ctx, []*domain.Node{mesh}))

	items, err := h.FetchRoot(ctx)
	require.NoError(t, err)
	vertices := items[0].Child("Vertices")
	require.NotNil(t, vertices)

	require.NoError(t, h.DeleteNode(ctx, vertices))

	doc, err := store.Load(ctx, "scene")
	require.NoError(t, err)
	require.Len(t, doc.Items[0].Items, 1)
	assert.Equal(t, "Draw", doc.Items[0].Items[0].Name)
	assert.Equal(t, int64(2), doc.Revision)
}

func TestDocumentHost_DeleteUnpersistedNodeIsNoop(t *testing.T) {
	h, store := newHost(t, "scene")
	ctx := context.Background()

	require.NoError(t, h.DeleteNode(ctx, domain.NewNode("Fresh", nil)))
	require.NoError(t, h.DeleteNode(ctx, domain.NewNode("Stale", map[string]any{"id": 99})))

	_, err := store.Load(ctx, "scene")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

type failingStore struct {
	*memory.Store
	err error
}

func (s *failingStore) Save(ctx context.Context, docID string, doc *domain.Document) error {
	return s.err
}

func TestDocumentHost_FlushFailure(t *testing.T) {
	boom := errors.New("disk full")
	h := host.New(&failingStore{Store: memory.NewStore(), err: boom}, "scene")

	err := h.Flush(context.Background(), []*domain.Node{})
	assert.ErrorIs(t, err, boom)
}

func TestDocumentHost_Functions(t *testing.T) {
	h, store := newHost(t, "scene")
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "other", domain.NewDocument("other")))
	require.NoError(t, h.Flush(ctx, nil))

	fns := h.HostFunctions()

	id, err := fns["documentId"](ctx)
	require.NoError(t, err)
	assert.Equal(t, "scene", id)

	rev, err := fns["revision"](ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	docs, err := fns["listDocuments"](ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"other", "scene"}, docs)
}

type staticFunctions map[string]ports.HostFunc

func (f staticFunctions) HostFunctions() map[string]ports.HostFunc { return f }

func TestDocumentHost_ExtraFunctions(t *testing.T) {
	echo := staticFunctions{
		"echo": func(ctx context.Context, args ...any) (any, error) {
			return args, nil
		},
		"documentId": func(ctx context.Context, args ...any) (any, error) {
			return "shadowed", nil
		},
	}
	h := host.New(memory.NewStore(), "scene", host.WithFunctions(echo))
	ctx := context.Background()

	fns := h.HostFunctions()
	got, err := fns["echo"](ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 1}, got)

	id, err := fns["documentId"](ctx)
	require.NoError(t, err)
	assert.Equal(t, "scene", id, "built-ins cannot be replaced")
}
