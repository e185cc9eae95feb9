package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weblog/api/config"
)

type item struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestAsideCachesLoadedValue(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(dest *[]item) func() error {
		return func() error {
			calls++
			*dest = []item{{ID: 1, Title: "first"}}
			return nil
		}
	}

	var first []item
	require.NoError(t, c.Aside(ctx, PostsAllKey, &first, load(&first)))
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(PostsAllKey))
	assert.Equal(t, time.Minute, mr.TTL(PostsAllKey))

	var second []item
	require.NoError(t, c.Aside(ctx, PostsAllKey, &second, load(&second)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestAsideDoesNotCacheLoadErrors(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")

	var out []item
	err := c.Aside(context.Background(), AuthorsKey, &out, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(AuthorsKey))
}

func TestAsideFallsBackWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := New(client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mr.Close()

	var out []item
	err = c.Aside(context.Background(), PostsAllKey, &out, func() error {
		out = []item{{ID: 2}}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: 2}}, out)
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(PostsByCategoryKey("Art"), "[]"))
	require.NoError(t, mr.Set(PostsByAuthorKey(3), "[]"))

	c.Invalidate(context.Background(), PostsByCategoryKey("Art"), PostsByAuthorKey(3))
	assert.False(t, mr.Exists("posts:category:Art"))
	assert.False(t, mr.Exists("posts:author:3"))
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	calls := 0
	var out []item
	require.NoError(t, c.Aside(context.Background(), PostsAllKey, &out, func() error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
	c.Invalidate(context.Background(), PostsAllKey)
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}

func TestConnectDisabled(t *testing.T) {
	c, err := Connect(context.Background(), config.RedisConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)
}
