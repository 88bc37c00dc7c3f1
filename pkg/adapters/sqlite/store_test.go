package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/docbridge/pkg/adapters/sqlite"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunDocumentStoreContract(t, newStore(t))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docs.db")
	ctx := context.Background()
	when := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)

	store, err := sqlite.New(path)
	require.NoError(t, err)
	doc := domain.NewDocument("scene")
	doc.Items = append(doc.Items, domain.NewNode("Texture", map[string]any{"id": 1}))
	doc.Revision = 5
	doc.NextID = 2
	doc.UpdatedAt = when
	require.NoError(t, store.Save(ctx, "scene", doc))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "scene")
	require.NoError(t, err)
	assert.Equal(t, int64(5), loaded.Revision)
	assert.Equal(t, int64(2), loaded.NextID)
	assert.True(t, when.Equal(loaded.UpdatedAt))
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "Texture", loaded.Items[0].Name)
	assert.Equal(t, path, reopened.Path())
}
