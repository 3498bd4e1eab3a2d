// Package cache implements the settings cache layer: composite keys per
// scope, tag-based bulk invalidation and a pluggable substrate. The backing
// store stays authoritative; substrate failures degrade to cache misses and
// never fail the calling operation.
package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/settingsd/settingsd/internal/scope"
)

// DefaultTTL applies when no TTL is configured.
const DefaultTTL = 3600 * time.Second

var (
	// lookups is a singleton for the hit/miss counter vec.
	lookups *prometheus.CounterVec //nolint:gochecknoglobals
)

//nolint:gochecknoinits
func init() {
	lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settingsd_cache_lookups_total",
			Help: "Number of settings cache lookups, differentiated by outcome.",
		},
		[]string{"outcome"},
	)
}

// Store is a cache substrate. Put attaches invalidation tags to the entry;
// substrates without tag support may implement FlushTags as a full flush,
// which is lossy but correct because the backing store is authoritative.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte, tags []string, ttl time.Duration) error
	Has(key string) (bool, error)
	Forget(key string) error
	FlushTags(tags []string) error
	Flush() error
	Close() error
}

// Config carries the cache options recognized by the engine.
type Config struct {
	Enabled    bool
	Prefix     string
	DefaultTTL time.Duration
	UseTags    bool
}

// Cache maps scoped setting keys onto a Store. A nil or disabled Cache is
// safe to use; every lookup is a miss and every write a no-op.
type Cache struct {
	cfg   Config
	store Store
}

// New builds a cache layer over store. A nil store disables caching.
func New(cfg Config, store Store) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}

	if store == nil {
		cfg.Enabled = false
	}

	return &Cache{cfg: cfg, store: store}
}

func (c *Cache) disabled() bool {
	return c == nil || !c.cfg.Enabled
}

// GetValue looks up the cached full value of a top-level key. Substrate
// errors are logged and reported as a miss.
func (c *Cache) GetValue(sc scope.Scope, mainKey string) ([]byte, bool) {
	if c.disabled() {
		return nil, false
	}

	key := sc.CacheKey(c.cfg.Prefix, mainKey)

	raw, ok, err := c.store.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("cache get failed, treating as miss")
		lookups.WithLabelValues("error").Inc()

		return nil, false
	}

	if !ok {
		lookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	lookups.WithLabelValues("hit").Inc()

	return raw, true
}

// PutValue stores the full value of a top-level key under its composite key,
// tagged for scope-wide invalidation.
func (c *Cache) PutValue(sc scope.Scope, mainKey string, raw []byte) {
	if c.disabled() {
		return
	}

	key := sc.CacheKey(c.cfg.Prefix, mainKey)

	if err := c.store.Put(key, raw, sc.Tags(c.cfg.Prefix), c.cfg.DefaultTTL); err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("cache put failed")
	}
}

// HasValue reports whether a top-level key is cached.
func (c *Cache) HasValue(sc scope.Scope, mainKey string) bool {
	if c.disabled() {
		return false
	}

	key := sc.CacheKey(c.cfg.Prefix, mainKey)

	ok, err := c.store.Has(key)
	if err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("cache has failed, treating as miss")
		return false
	}

	return ok
}

// ForgetValue drops the cache entry of one top-level key.
func (c *Cache) ForgetValue(sc scope.Scope, mainKey string) {
	if c.disabled() {
		return
	}

	key := sc.CacheKey(c.cfg.Prefix, mainKey)

	if err := c.store.Forget(key); err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("cache forget failed")
	}
}

// FlushScope invalidates every entry of one scope. With tags disabled this
// falls back to flushing the whole store.
func (c *Cache) FlushScope(sc scope.Scope) {
	if c.disabled() {
		return
	}

	if !c.cfg.UseTags {
		c.FlushAll()
		return
	}

	if err := c.store.FlushTags([]string{sc.ScopeTag(c.cfg.Prefix)}); err != nil {
		log.Warn().Err(err).Str("scope", sc.String()).Msg("cache scope flush failed")
	}
}

// FlushAll drops every entry of the store.
func (c *Cache) FlushAll() {
	if c.disabled() {
		return
	}

	if err := c.store.Flush(); err != nil {
		log.Warn().Err(err).Msg("cache flush failed")
	}
}

// Close releases the substrate.
func (c *Cache) Close() {
	if c == nil || c.store == nil {
		return
	}

	if err := c.store.Close(); err != nil {
		log.Warn().Err(err).Msg("cache close failed")
	}
}
