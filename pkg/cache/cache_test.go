package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/docbridge/pkg/cache"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHost simulates the host binding.
type MockHost struct {
	mock.Mock
}

func (m *MockHost) FetchRoot(ctx context.Context) ([]*domain.Node, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Node), args.Error(1)
}

func (m *MockHost) Flush(ctx context.Context, items []*domain.Node) error {
	return m.Called(ctx, items).Error(0)
}

func (m *MockHost) DeleteNode(ctx context.Context, node *domain.Node) error {
	return m.Called(ctx, node).Error(0)
}

func TestCache_RootIsFetchedOnce(t *testing.T) {
	host := new(MockHost)
	host.On("FetchRoot", mock.Anything).Return([]*domain.Node{domain.NewNode("a", nil)}, nil)

	c := cache.New(host)
	ctx := context.Background()

	first, err := c.Root(ctx)
	require.NoError(t, err)
	second, err := c.Root(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second, "cache hit must return the same snapshot")
	assert.True(t, c.Fetched())
	host.AssertNumberOfCalls(t, "FetchRoot", 1)
}

func TestCache_FlushInvalidates(t *testing.T) {
	host := new(MockHost)
	host.On("FetchRoot", mock.Anything).Return([]*domain.Node{}, nil)
	host.On("Flush", mock.Anything, mock.Anything).Return(nil)

	c := cache.New(host)
	ctx := context.Background()

	first, err := c.Root(ctx)
	require.NoError(t, err)
	first.Items = append(first.Items, domain.NewNode("added", nil))

	require.NoError(t, c.Flush(ctx))
	assert.False(t, c.Fetched())
	host.AssertCalled(t, "Flush", mock.Anything, mock.MatchedBy(func(items []*domain.Node) bool {
		return len(items) == 1 && items[0].Name == "added"
	}))

	second, err := c.Root(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	host.AssertNumberOfCalls(t, "FetchRoot", 2)
	host.AssertNumberOfCalls(t, "Flush", 1)
}

func TestCache_FlushWithoutSnapshotIsNoop(t *testing.T) {
	host := new(MockHost)
	c := cache.New(host)

	require.NoError(t, c.Flush(context.Background()))
	require.NoError(t, c.Flush(context.Background()))

	host.AssertNotCalled(t, "Flush", mock.Anything, mock.Anything)
	host.AssertNotCalled(t, "FetchRoot", mock.Anything)
}

func TestCache_NilCollectionBecomesEmpty(t *testing.T) {
	host := new(MockHost)
	host.On("FetchRoot", mock.Anything).Return(nil, nil)

	root, err := cache.New(host).Root(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, root.Items)
	assert.Empty(t, root.Items)
	assert.Equal(t, "", root.Name)
}

func TestCache_FetchErrorIsHostIO(t *testing.T) {
	boom := errors.New("disk on fire")
	host := new(MockHost)
	host.On("FetchRoot", mock.Anything).Return(nil, boom).Once()
	host.On("FetchRoot", mock.Anything).Return([]*domain.Node{}, nil).Once()

	c := cache.New(host)
	_, err := c.Root(context.Background())

	assert.ErrorIs(t, err, domain.ErrHostIO)
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Fetched(), "a failed fetch must not be cached")

	_, err = c.Root(context.Background())
	assert.NoError(t, err)
}

func TestCache_FlushErrorStillInvalidates(t *testing.T) {
	boom := errors.New("write refused")
	host := new(MockHost)
	host.On("FetchRoot", mock.Anything).Return([]*domain.Node{}, nil)
	host.On("Flush", mock.Anything, mock.Anything).Return(boom)

	c := cache.New(host)
	_, err := c.Root(context.Background())
	require.NoError(t, err)

	err = c.Flush(context.Background())
	assert.ErrorIs(t, err, domain.ErrHostIO)
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Fetched(), "no partial flush state is retained")

	require.NoError(t, c.Flush(context.Background()))
	host.AssertNumberOfCalls(t, "Flush", 1)
}

func TestCache_Discard(t *testing.T) {
	host := new(MockHost)
	host.On("FetchRoot", mock.Anything).Return([]*domain.Node{}, nil)

	c := cache.New(host)
	_, err := c.Root(context.Background())
	require.NoError(t, err)

	c.Discard()
	assert.False(t, c.Fetched())
	require.NoError(t, c.Flush(context.Background()))
	host.AssertNotCalled(t, "Flush", mock.Anything, mock.Anything)
}

func TestCache_Hooks(t *testing.T) {
	host := new(MockHost)
	host.On("FetchRoot", mock.Anything).Return([]*domain.Node{domain.NewNode("a", nil), domain.NewNode("b", nil)}, nil)
	host.On("Flush", mock.Anything, mock.Anything).Return(nil)

	var events []*domain.SnapshotEvent
	record := func(_ context.Context, e *domain.SnapshotEvent) { events = append(events, e) }

	c := cache.New(host, cache.WithLifecycleHooks(domain.LifecycleHooks{OnFetch: record, OnFlush: record}))
	ctx := context.Background()
	_, _ = c.Root(ctx)
	_, _ = c.Root(ctx)
	require.NoError(t, c.Flush(ctx))

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventFetch, events[0].Type)
	assert.Equal(t, 2, events[0].Items)
	assert.Equal(t, domain.EventFlush, events[1].Type)
	assert.NoError(t, events[1].Err)
}
