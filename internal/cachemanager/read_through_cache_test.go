package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockManager is a testify mock of Manager.
type mockManager[V any] struct {
	mock.Mock
}

func (m *mockManager[V]) Get(ctx context.Context, key string) (V, bool) {
	args := m.Called(ctx, key)
	return args.Get(0).(V), args.Bool(1)
}

func (m *mockManager[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *mockManager[V]) Delete(ctx context.Context, keys ...string) {
	m.Called(ctx, keys)
}

func (m *mockManager[V]) Flush(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockManager[V]) Stats() Stats {
	return m.Called().Get(0).(Stats)
}

func countingLoader(calls *int, err error) Loader[string] {
	return func(_ context.Context, key string) (string, error) {
		*calls++
		if err != nil {
			return "", err
		}
		return "loaded:" + key, nil
	}
}

func TestReadThrough_Get_WithCacheDisabled(t *testing.T) {
	managerMock := &mockManager[string]{}
	calls := 0
	rt := NewReadThrough[string](managerMock, countingLoader(&calls, nil), time.Minute, true)

	for range 2 {
		got, err := rt.Get(context.Background(), "std.echo")
		require.NoError(t, err)
		require.Equal(t, "loaded:std.echo", got)
	}
	require.Equal(t, 2, calls)

	rt.Invalidate(context.Background(), "std.echo")
	managerMock.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	managerMock.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestReadThrough_Get_CacheHit(t *testing.T) {
	managerMock := &mockManager[string]{}
	managerMock.On("Get", mock.Anything, "std.echo").Return("cached", true).Once()
	calls := 0
	rt := NewReadThrough[string](managerMock, countingLoader(&calls, nil), time.Minute, false)

	got, err := rt.Get(context.Background(), "std.echo")
	require.NoError(t, err)
	require.Equal(t, "cached", got)
	require.Zero(t, calls)
	managerMock.AssertExpectations(t)
}

func TestReadThrough_Get_CacheMissStores(t *testing.T) {
	managerMock := &mockManager[string]{}
	managerMock.On("Get", mock.Anything, "std.echo").Return("", false).Once()
	managerMock.On("Set", mock.Anything, "std.echo", "loaded:std.echo", time.Minute).Once()
	calls := 0
	rt := NewReadThrough[string](managerMock, countingLoader(&calls, nil), time.Minute, false)

	got, err := rt.Get(context.Background(), "std.echo")
	require.NoError(t, err)
	require.Equal(t, "loaded:std.echo", got)
	require.Equal(t, 1, calls)
	managerMock.AssertExpectations(t)
}

func TestReadThrough_Get_LoaderErrorNotCached(t *testing.T) {
	managerMock := &mockManager[string]{}
	managerMock.On("Get", mock.Anything, "missing").Return("", false).Once()
	calls := 0
	loadErr := errors.New("not found")
	rt := NewReadThrough[string](managerMock, countingLoader(&calls, loadErr), time.Minute, false)

	_, err := rt.Get(context.Background(), "missing")
	require.ErrorIs(t, err, loadErr)
	managerMock.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	managerMock.AssertExpectations(t)
}

func TestReadThrough_InvalidateWithRealCache(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemory[string]("test", DefaultExpiration, DefaultCleanupInterval)
	calls := 0
	rt := NewReadThrough[string](cache, countingLoader(&calls, nil), time.Minute, false)

	_, err := rt.Get(ctx, "std.echo")
	require.NoError(t, err)
	_, err = rt.Get(ctx, "std.echo")
	require.NoError(t, err)
	require.Equal(t, 1, calls, "second Get should be served from cache")

	rt.Invalidate(ctx, "std.echo")
	_, err = rt.Get(ctx, "std.echo")
	require.NoError(t, err)
	require.Equal(t, 2, calls, "Get after Invalidate should reload")
	require.Equal(t, uint64(1), rt.Stats().Hits)
}

func TestReadThrough_InvalidateDuringLoadSkipsSet(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemory[string]("test", DefaultExpiration, DefaultCleanupInterval)

	started := make(chan struct{})
	release := make(chan struct{})
	version := "v1"
	calls := 0
	load := func(_ context.Context, key string) (string, error) {
		calls++
		current := version
		if calls == 1 {
			close(started)
			<-release
		}
		return current, nil
	}
	rt := NewReadThrough[string](cache, load, time.Minute, false)

	done := make(chan string)
	go func() {
		got, err := rt.Get(ctx, "my.echo")
		require.NoError(t, err)
		done <- got
	}()

	<-started
	version = "v2"
	rt.Invalidate(ctx, "my.echo")
	close(release)
	require.Equal(t, "v1", <-done, "the overlapping load still returns what it read")

	got, err := rt.Get(ctx, "my.echo")
	require.NoError(t, err)
	require.Equal(t, "v2", got, "the overlapping load must not have been cached")
	require.Equal(t, 2, calls)

	got, err = rt.Get(ctx, "my.echo")
	require.NoError(t, err)
	require.Equal(t, "v2", got)
	require.Equal(t, 2, calls, "a load with no overlapping invalidate is cached")
}
