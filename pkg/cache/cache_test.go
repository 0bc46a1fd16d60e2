package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryCache(opts *Options) *Cache {
	return NewCache(NewMemoryProvider(opts))
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(nil)

	type payload struct {
		Name  string `json:"name"`
		Total int    `json:"total"`
	}
	require.NoError(t, c.Set(ctx, "k1", payload{Name: "groups", Total: 42}, time.Minute))

	var got payload
	require.NoError(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, payload{Name: "groups", Total: 42}, got)

	assert.True(t, c.Exists(ctx, "k1"))
	require.NoError(t, c.Delete(ctx, "k1"))
	assert.False(t, c.Exists(ctx, "k1"))
	assert.Error(t, c.Get(ctx, "k1", &got))
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(nil)

	require.NoError(t, c.Set(ctx, "short", 1, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got int
	assert.Error(t, c.Get(ctx, "short", &got))
	assert.False(t, c.Exists(ctx, "short"))
}

func TestCacheTagInvalidation(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(nil)

	require.NoError(t, c.SetWithTags(ctx, "total:a", 1, time.Minute, []string{"table:default/groups"}))
	require.NoError(t, c.SetWithTags(ctx, "total:b", 2, time.Minute, []string{"table:default/groups"}))
	require.NoError(t, c.SetWithTags(ctx, "total:c", 3, time.Minute, []string{"table:default/users"}))

	require.NoError(t, c.DeleteByTag(ctx, "table:default/groups"))

	var got int
	assert.Error(t, c.Get(ctx, "total:a", &got))
	assert.Error(t, c.Get(ctx, "total:b", &got))
	require.NoError(t, c.Get(ctx, "total:c", &got))
	assert.Equal(t, 3, got)
}

func TestCacheOverwriteDropsOldTags(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(nil)

	require.NoError(t, c.SetWithTags(ctx, "k", 1, time.Minute, []string{"old"}))
	require.NoError(t, c.SetWithTags(ctx, "k", 2, time.Minute, []string{"new"}))

	require.NoError(t, c.DeleteByTag(ctx, "old"))
	var got int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 2, got)

	require.NoError(t, c.DeleteByTag(ctx, "new"))
	assert.Error(t, c.Get(ctx, "k", &got))
}

func TestMemoryProviderLRUEviction(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(&Options{DefaultTTL: time.Minute, MaxSize: 2})

	require.NoError(t, p.Set(ctx, "a", []byte("1"), 0))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, p.Set(ctx, "b", []byte("2"), 0))
	time.Sleep(2 * time.Millisecond)

	// Touch "a" so "b" becomes the least recently used entry.
	_, ok := p.Get(ctx, "a")
	require.True(t, ok)
	time.Sleep(2 * time.Millisecond)

	require.NoError(t, p.Set(ctx, "c", []byte("3"), 0))

	assert.True(t, p.Exists(ctx, "a"))
	assert.False(t, p.Exists(ctx, "b"))
	assert.True(t, p.Exists(ctx, "c"))
}

func TestMemoryProviderStats(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(nil)

	require.NoError(t, p.Set(ctx, "k", []byte("v"), 0))
	_, _ = p.Get(ctx, "k")
	_, _ = p.Get(ctx, "missing")

	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Keys)
	assert.Equal(t, "memory", stats.ProviderType)
}

func TestCleanExpired(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(nil)

	require.NoError(t, p.Set(ctx, "stale", []byte("v"), 5*time.Millisecond))
	require.NoError(t, p.Set(ctx, "fresh", []byte("v"), time.Minute))
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, p.CleanExpired(ctx))
	assert.True(t, p.Exists(ctx, "fresh"))
}

func TestBuildQueryTotalKey(t *testing.T) {
	base := BuildQueryTotalKey("default", "groups", nil, "")
	assert.Contains(t, base, "query_total:")

	same := BuildQueryTotalKey("default", "groups", nil, "")
	assert.Equal(t, base, same, "identical inputs must hash identically")

	differentTable := BuildQueryTotalKey("default", "users", nil, "")
	assert.NotEqual(t, base, differentTable)

	filtered := BuildQueryTotalKey("default", "groups", map[string][]string{"name": {"a"}}, "")
	assert.NotEqual(t, base, filtered)

	searched := BuildQueryTotalKey("default", "groups", nil, "a")
	assert.NotEqual(t, base, searched)
}

func TestTableTag(t *testing.T) {
	assert.Equal(t, "table:default/groups", TableTag("default", "groups"))
	assert.Equal(t, "table:reporting/users", TableTag("reporting", "users"))
}

func TestInvalidateTable(t *testing.T) {
	ctx := context.Background()
	prev := defaultCache
	defer SetDefaultCache(prev)
	SetDefaultCache(newMemoryCache(nil))

	key := BuildQueryTotalKey("default", "groups", nil, "")
	require.NoError(t, GetDefaultCache().SetWithTags(ctx, key, CachedTotal{Total: 9}, QueryTotalTTL,
		[]string{TableTag("default", "groups")}))

	require.NoError(t, InvalidateTable(ctx, "default", "groups"))

	var got CachedTotal
	assert.Error(t, GetDefaultCache().Get(ctx, key, &got))
}
