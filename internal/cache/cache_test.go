package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settingsd/settingsd/internal/scope"
)

func newTestCache(t *testing.T, useTags bool) *Cache {
	t.Helper()

	store := NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	return New(Config{Enabled: true, DefaultTTL: time.Minute, UseTags: useTags}, store)
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t, true)
	sc := scope.Global()

	_, ok := c.GetValue(sc, "theme")
	assert.False(t, ok)

	c.PutValue(sc, "theme", []byte(`"dark"`))

	raw, ok := c.GetValue(sc, "theme")
	require.True(t, ok)
	assert.Equal(t, []byte(`"dark"`), raw)
	assert.True(t, c.HasValue(sc, "theme"))

	c.ForgetValue(sc, "theme")
	_, ok = c.GetValue(sc, "theme")
	assert.False(t, ok)
}

func TestCacheScopeIsolation(t *testing.T) {
	c := newTestCache(t, true)

	c.PutValue(scope.Global(), "theme", []byte(`"dark"`))
	c.PutValue(scope.Owned("user", "1"), "theme", []byte(`"light"`))

	raw, ok := c.GetValue(scope.Global(), "theme")
	require.True(t, ok)
	assert.Equal(t, []byte(`"dark"`), raw)

	raw, ok = c.GetValue(scope.Owned("user", "1"), "theme")
	require.True(t, ok)
	assert.Equal(t, []byte(`"light"`), raw)

	_, ok = c.GetValue(scope.Owned("user", "2"), "theme")
	assert.False(t, ok)
}

func TestCacheFlushScopeWithTags(t *testing.T) {
	c := newTestCache(t, true)
	user1 := scope.Owned("user", "1")

	c.PutValue(scope.Global(), "theme", []byte(`"dark"`))
	c.PutValue(user1, "theme", []byte(`"light"`))
	c.PutValue(user1, "lang", []byte(`"de"`))

	c.FlushScope(user1)

	_, ok := c.GetValue(user1, "theme")
	assert.False(t, ok)
	_, ok = c.GetValue(user1, "lang")
	assert.False(t, ok)

	// Tag flush of one owner leaves the global entry alone.
	_, ok = c.GetValue(scope.Global(), "theme")
	assert.True(t, ok)
}

func TestCacheFlushScopeWithoutTags(t *testing.T) {
	c := newTestCache(t, false)
	user1 := scope.Owned("user", "1")

	c.PutValue(scope.Global(), "theme", []byte(`"dark"`))
	c.PutValue(user1, "theme", []byte(`"light"`))

	// Without tags the fallback is a full flush.
	c.FlushScope(user1)

	_, ok := c.GetValue(scope.Global(), "theme")
	assert.False(t, ok)
	_, ok = c.GetValue(user1, "theme")
	assert.False(t, ok)
}

func TestCacheDisabled(t *testing.T) {
	var nilCache *Cache

	nilCache.PutValue(scope.Global(), "theme", []byte(`1`))
	_, ok := nilCache.GetValue(scope.Global(), "theme")
	assert.False(t, ok)

	disabled := New(Config{Enabled: false}, NewMemoryStore(time.Minute))
	disabled.PutValue(scope.Global(), "theme", []byte(`1`))
	_, ok = disabled.GetValue(scope.Global(), "theme")
	assert.False(t, ok)

	// A nil store disables the cache even when config says enabled.
	noStore := New(Config{Enabled: true}, nil)
	noStore.PutValue(scope.Global(), "theme", []byte(`1`))
	_, ok = noStore.GetValue(scope.Global(), "theme")
	assert.False(t, ok)
}

// failingStore simulates a broken substrate (connection errors, timeouts).
type failingStore struct{}

var errSubstrate = errors.New("substrate down")

func (failingStore) Get(string) ([]byte, bool, error)                    { return nil, false, errSubstrate }
func (failingStore) Put(string, []byte, []string, time.Duration) error   { return errSubstrate }
func (failingStore) Has(string) (bool, error)                            { return false, errSubstrate }
func (failingStore) Forget(string) error                                 { return errSubstrate }
func (failingStore) FlushTags([]string) error                            { return errSubstrate }
func (failingStore) Flush() error                                        { return errSubstrate }
func (failingStore) Close() error                                        { return errSubstrate }

func TestCacheDegradesOnSubstrateFailure(t *testing.T) {
	c := New(Config{Enabled: true, UseTags: true}, failingStore{})

	// No call may panic or surface the substrate error.
	c.PutValue(scope.Global(), "theme", []byte(`1`))

	_, ok := c.GetValue(scope.Global(), "theme")
	assert.False(t, ok)
	assert.False(t, c.HasValue(scope.Global(), "theme"))

	c.ForgetValue(scope.Global(), "theme")
	c.FlushScope(scope.Global())
	c.FlushAll()
	c.Close()
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put("k", []byte(`1`), nil, 10*time.Millisecond))

	_, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok, err = store.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreFlushTags(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put("a", []byte(`1`), []string{"all", "g"}, 0))
	require.NoError(t, store.Put("b", []byte(`2`), []string{"all", "u1"}, 0))
	require.NoError(t, store.Put("c", []byte(`3`), []string{"all", "u1"}, 0))

	require.NoError(t, store.FlushTags([]string{"u1"}))

	_, ok, _ := store.Get("a")
	assert.True(t, ok)
	_, ok, _ = store.Get("b")
	assert.False(t, ok)
	_, ok, _ = store.Get("c")
	assert.False(t, ok)

	require.NoError(t, store.FlushTags([]string{"all"}))
	_, ok, _ = store.Get("a")
	assert.False(t, ok)
}

// mapSubstrate is a minimal in-memory gofiber/storage stand-in.
type mapSubstrate struct {
	entries map[string][]byte
}

func (m *mapSubstrate) Get(key string) ([]byte, error) { return m.entries[key], nil }
func (m *mapSubstrate) Set(key string, val []byte, _ time.Duration) error {
	m.entries[key] = val
	return nil
}
func (m *mapSubstrate) Delete(key string) error { delete(m.entries, key); return nil }
func (m *mapSubstrate) Reset() error            { m.entries = map[string][]byte{}; return nil }
func (m *mapSubstrate) Close() error            { return nil }

func TestSharedStoreFullFlushFallback(t *testing.T) {
	store := NewSharedStore(&mapSubstrate{entries: map[string][]byte{}})

	require.NoError(t, store.Put("a", []byte(`1`), []string{"g"}, time.Minute))
	require.NoError(t, store.Put("b", []byte(`2`), []string{"u1"}, time.Minute))

	ok, err := store.Has("a")
	require.NoError(t, err)
	assert.True(t, ok)

	// Tag flush on a tagless substrate clears everything.
	require.NoError(t, store.FlushTags([]string{"u1"}))

	_, ok, err = store.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get("b")
	require.NoError(t, err)
	assert.False(t, ok)
}
