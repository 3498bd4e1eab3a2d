package cache

import (
	"time"
)

// Substrate is the interface satisfied by gofiber/storage drivers, used when
// the cache must be shared between processes.
type Substrate interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
	Reset() error
	Close() error
}

// SharedStore adapts a gofiber/storage driver to the Store interface. The
// drivers have no tag support, so tag-scoped invalidation uses the full-flush
// fallback: lossy but correct, the backing store stays authoritative.
type SharedStore struct {
	storage Substrate
}

// NewSharedStore wraps a gofiber/storage driver.
func NewSharedStore(storage Substrate) *SharedStore {
	return &SharedStore{storage: storage}
}

// Get returns the entry stored under key. The drivers report a miss as a nil
// value with no error.
func (s *SharedStore) Get(key string) ([]byte, bool, error) {
	raw, err := s.storage.Get(key)
	if err != nil {
		return nil, false, err
	}

	if raw == nil {
		return nil, false, nil
	}

	return raw, true, nil
}

// Put stores value under key. Tags are accepted and dropped.
func (s *SharedStore) Put(key string, value []byte, _ []string, ttl time.Duration) error {
	return s.storage.Set(key, value, ttl)
}

// Has reports whether key is present.
func (s *SharedStore) Has(key string) (bool, error) {
	raw, err := s.storage.Get(key)
	if err != nil {
		return false, err
	}

	return raw != nil, nil
}

// Forget drops one entry.
func (s *SharedStore) Forget(key string) error {
	return s.storage.Delete(key)
}

// FlushTags falls back to a full flush; the driver cannot enumerate by tag.
func (s *SharedStore) FlushTags(_ []string) error {
	return s.storage.Reset()
}

// Flush drops every entry.
func (s *SharedStore) Flush() error {
	return s.storage.Reset()
}

// Close releases the driver.
func (s *SharedStore) Close() error {
	return s.storage.Close()
}
