package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDocumentStoreContract runs a suite of tests to verify that a DocumentStore
// implementation adheres to the defined interface contract.
func RunDocumentStoreContract(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	docID := "contract-test-doc-" + time.Now().Format("20060102150405")

	newDoc := func(id string) *domain.Document {
		doc := domain.NewDocument(id)
		mesh := domain.NewContainer("Mesh", map[string]any{"type": "Group", "id": 1})
		mesh.Items = append(mesh.Items, domain.NewNode("Vertices", map[string]any{"type": "Buffer", "id": 2, "stride": 12}))
		doc.Items = append(doc.Items, mesh, domain.NewNode("Draw", map[string]any{"type": "Call"}))
		doc.Revision = 3
		doc.NextID = 3
		return doc
	}

	t.Run("Save and Load", func(t *testing.T) {
		doc := newDoc(docID)

		err := store.Save(ctx, docID, doc)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, docID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, docID, loaded.ID)
		assert.Equal(t, int64(3), loaded.Revision)
		assert.Equal(t, int64(3), loaded.NextID)

		require.Len(t, loaded.Items, 2)
		assert.Equal(t, "Mesh", loaded.Items[0].Name, "top-level order must be preserved")
		assert.Equal(t, "Draw", loaded.Items[1].Name)
		assert.Nil(t, loaded.Items[1].Items, "non-containers must not grow an items list")

		vertices := loaded.Items[0].Child("Vertices")
		require.NotNil(t, vertices)
		assert.Equal(t, "Buffer", vertices.Type())
		// JSON persistence often converts int to float; only check presence.
		assert.NotNil(t, vertices.Attrs["stride"])
		id, ok := vertices.ID()
		assert.True(t, ok)
		assert.Equal(t, int64(2), id)
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, docID, newDoc(docID)))

		first, err := store.Load(ctx, docID)
		require.NoError(t, err)
		first.Items[0].Name = "Mutated"
		first.Items = append(first.Items, domain.NewNode("Extra", nil))

		second, err := store.Load(ctx, docID)
		require.NoError(t, err)
		assert.Equal(t, "Mesh", second.Items[0].Name, "mutating a loaded document must not leak into the store")
		assert.Len(t, second.Items, 2)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+docID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, docID, newDoc(docID)))

		err := store.Delete(ctx, docID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, docID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound, "Load after Delete should return ErrDocumentNotFound")

		assert.NoError(t, store.Delete(ctx, docID), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := docID + "-1"
		id2 := docID + "-2"
		require.NoError(t, store.Save(ctx, id1, newDoc(id1)))
		require.NoError(t, store.Save(ctx, id2, newDoc(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		docs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, docs, id1)
		assert.Contains(t, docs, id2)
	})
}
