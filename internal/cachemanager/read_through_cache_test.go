package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type historyKey string

func TestInMemoryCacheManager_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[historyKey, []string]("test", time.Minute, time.Minute)

	_, ok := c.Get(ctx, "a")
	require.False(t, ok)

	c.Set(ctx, "a", []string{"t/#"}, time.Minute)
	v, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, []string{"t/#"}, v)

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok = c.Get(ctx, "a")
	require.False(t, ok)

	c.Set(ctx, "b", nil, time.Minute)
	require.NoError(t, c.Flush(ctx))
	_, ok = c.Get(ctx, "b")
	require.False(t, ok)
}

func TestInMemoryCacheManager_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[historyKey, int]("test", time.Minute, time.Minute)
	c.Set(ctx, "k", 1, time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestReadThroughCache_LoadsOnceUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	calls := 0
	r := NewReadThroughCache[historyKey, int](
		NewInMemoryCacheManager[historyKey, int]("test", time.Minute, time.Minute),
		func(_ context.Context, key historyKey) (int, error) {
			calls++
			return len(key), nil
		},
		time.Minute,
	)

	v, err := r.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, 3, v)
	_, _ = r.Get(ctx, "abc")
	require.Equal(t, 1, calls)

	r.Invalidate(ctx, "abc")
	_, _ = r.Get(ctx, "abc")
	require.Equal(t, 2, calls)
}

func TestReadThroughCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	fail := true
	r := NewReadThroughCache[historyKey, int](
		NewInMemoryCacheManager[historyKey, int]("test", time.Minute, time.Minute),
		func(_ context.Context, _ historyKey) (int, error) {
			if fail {
				return 0, errors.New("boom")
			}
			return 42, nil
		},
		time.Minute,
	)

	_, err := r.Get(ctx, "k")
	require.Error(t, err)

	fail = false
	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 42, v)
}
