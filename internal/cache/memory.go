package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is the in-process substrate: a TTL cache plus a tag index so
// scope-wide invalidation does not have to enumerate keys.
type MemoryStore struct {
	cache *ttlcache.Cache[string, []byte]

	mu      sync.Mutex
	tagKeys map[string]map[string]struct{} // tag → keys carrying it
	keyTags map[string][]string            // key → its tags
}

// NewMemoryStore creates a memory substrate with the given default TTL and
// starts its expiration loop.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &MemoryStore{
		cache:   ttlcache.New(ttlcache.WithTTL[string, []byte](ttl)),
		tagKeys: make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
	}

	// Expired entries must leave the tag index too.
	s.cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, []byte]) {
		s.mu.Lock()
		s.untagLocked(item.Key())
		s.mu.Unlock()
	})

	go s.cache.Start()

	return s
}

// Get returns the entry stored under key, if present and not expired.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	item := s.cache.Get(key)
	if item == nil {
		return nil, false, nil
	}

	return item.Value(), true, nil
}

// Put stores value under key with the given tags and TTL.
func (s *MemoryStore) Put(key string, value []byte, tags []string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}

	s.mu.Lock()
	s.untagLocked(key)
	s.keyTags[key] = tags

	for _, tag := range tags {
		keys, ok := s.tagKeys[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tagKeys[tag] = keys
		}

		keys[key] = struct{}{}
	}
	s.mu.Unlock()

	s.cache.Set(key, value, ttl)

	return nil
}

// Has reports whether key is present and not expired.
func (s *MemoryStore) Has(key string) (bool, error) {
	return s.cache.Has(key), nil
}

// Forget drops one entry.
func (s *MemoryStore) Forget(key string) error {
	s.cache.Delete(key)
	return nil
}

// FlushTags drops every entry carrying at least one of the given tags.
func (s *MemoryStore) FlushTags(tags []string) error {
	s.mu.Lock()

	var keys []string
	for _, tag := range tags {
		for key := range s.tagKeys[tag] {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.cache.Delete(key)
	}

	return nil
}

// Flush drops every entry.
func (s *MemoryStore) Flush() error {
	s.cache.DeleteAll()
	return nil
}

// Close stops the expiration loop.
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}

// untagLocked removes key from the tag index. Callers hold s.mu.
func (s *MemoryStore) untagLocked(key string) {
	for _, tag := range s.keyTags[key] {
		delete(s.tagKeys[tag], key)

		if len(s.tagKeys[tag]) == 0 {
			delete(s.tagKeys, tag)
		}
	}

	delete(s.keyTags, key)
}
