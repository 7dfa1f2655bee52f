package collector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/LJTian/TrendingArchive/internal/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name    string
	items   []Item
	err     error
	explode bool
	calls   int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchItems(context.Context) ([]Item, error) {
	s.calls++
	if s.explode {
		panic("upstream exploded")
	}
	return s.items, s.err
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Hour), mr
}

func TestRegistryRejectsDuplicatesAndSortsNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewAdapter(&stubSource{name: "zhihu"}, nil, nil)))
	require.NoError(t, r.Register(NewAdapter(&stubSource{name: "baidu"}, nil, nil)))

	err := r.Register(NewAdapter(&stubSource{name: "baidu"}, nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, r.Register(NewAdapter(&stubSource{name: ""}, nil, nil)))
	assert.Equal(t, []string{"baidu", "zhihu"}, r.Names())
	assert.Equal(t, 2, r.Len())

	fs := r.Fetchers()
	require.Len(t, fs, 2)
	assert.Equal(t, "baidu", fs[0].Name())

	_, ok := r.Get("weibo")
	assert.False(t, ok)
}

func TestCleanStringRemovesControlCharacters(t *testing.T) {
	assert.Equal(t, "helloworld", CleanString("hel\x00lo\x07wor\x1Fld\x7F"))
	assert.Equal(t, "keep\ttabs\nand\rreturns", CleanString("keep\ttabs\nand\rreturns"))
	assert.Equal(t, "bad\uFFFDbyte", CleanString("bad\xffbyte"))
}

func TestSanitizeItemCleansNestedExtra(t *testing.T) {
	it := SanitizeItem(Item{
		Title: "t\x00itle",
		Hot:   "1\x0b2",
		Extra: map[string]any{
			"author": "a\x01b",
			"tags":   []any{"x\x02", 3},
			"nested": map[string]any{"k": "v\x03"},
		},
	})
	assert.Equal(t, "title", it.Title)
	assert.Equal(t, "12", it.Hot)
	assert.Equal(t, "ab", it.Extra["author"])
	assert.Equal(t, []any{"x", 3}, it.Extra["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, it.Extra["nested"])
}

func TestAdapterNeverFails(t *testing.T) {
	fixed := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

	t.Run("error", func(t *testing.T) {
		a := NewAdapter(&stubSource{name: "s", err: errors.New("timeout")}, nil, logger.NewNop())
		a.now = func() time.Time { return fixed }

		res := a.Fetch(context.Background(), true)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
		assert.False(t, res.FromCache)
		assert.Equal(t, fixed, res.UpdateTime)
	})

	t.Run("panic", func(t *testing.T) {
		a := NewAdapter(&stubSource{name: "s", explode: true}, nil, logger.NewNop())
		a.now = func() time.Time { return fixed }

		var res Result
		require.NotPanics(t, func() { res = a.Fetch(context.Background(), false) })
		assert.Empty(t, res.Items)
		assert.Equal(t, fixed, res.UpdateTime)
	})
}

func TestAdapterCacheAndBypass(t *testing.T) {
	cache, mr := newTestCache(t)
	src := &stubSource{name: "weibo", items: []Item{{ID: "1", Title: "a\x00", Hot: 12345}}}
	a := NewAdapter(src, cache, logger.NewNop())
	ctx := context.Background()

	first := a.Fetch(ctx, false)
	require.Len(t, first.Items, 1)
	assert.False(t, first.FromCache)
	assert.Equal(t, "a", first.Items[0].Title)
	assert.True(t, mr.Exists(cacheKeyPrefix+"weibo"))

	second := a.Fetch(ctx, false)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, src.calls)
	require.Len(t, second.Items, 1)
	assert.Equal(t, json.Number("12345"), second.Items[0].Hot)

	third := a.Fetch(ctx, true)
	assert.False(t, third.FromCache)
	assert.Equal(t, 2, src.calls)
}

func TestAdapterDoesNotCacheEmptyResults(t *testing.T) {
	cache, mr := newTestCache(t)
	a := NewAdapter(&stubSource{name: "empty"}, cache, logger.NewNop())

	res := a.Fetch(context.Background(), false)
	assert.Empty(t, res.Items)
	assert.False(t, mr.Exists(cacheKeyPrefix+"empty"))
}

func TestRedisCacheNilSafe(t *testing.T) {
	var c *RedisCache
	_, ok := c.Load(context.Background(), "x")
	assert.False(t, ok)
	c.Store(context.Background(), "x", Result{})
}

func TestDefaultRegistryListsBuiltinSources(t *testing.T) {
	r := NewDefaultRegistry(nil, nil, time.Second)
	assert.Equal(t, []string{"baidu", "github", "hackernews", "x"}, r.Names())
}
