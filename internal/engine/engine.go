// Package engine implements the settings engine: scoped get/set/forget/has
// and bulk operations with dot-notated nested access, validation, cache
// coherency and change notifications.
//
// Each public operation runs to completion within one call; the engine keeps
// no mutable state beyond its configuration, so one instance may serve any
// number of concurrent callers.
package engine

import (
	goerrors "errors"
	"html"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/settingsd/settingsd/internal/cache"
	"github.com/settingsd/settingsd/internal/db/controller/setting"
	"github.com/settingsd/settingsd/internal/db/models"
	"github.com/settingsd/settingsd/internal/events"
	"github.com/settingsd/settingsd/internal/scope"
	"github.com/settingsd/settingsd/internal/validation"
)

// ErrCancelled is returned when a pre-change or pre-delete subscriber vetoes
// the operation. Nothing was persisted and the cache was not touched.
var ErrCancelled = goerrors.New("operation cancelled by event subscriber")

// ErrConcurrentModification mirrors the repository error so callers can
// depend on the engine package alone; it is retryable.
var ErrConcurrentModification = setting.ErrConcurrentModification

// Config carries the engine toggles that are not owned by a collaborator.
type Config struct {
	// SanitizeHTML escapes HTML in every string leaf of a value before
	// validation and persistence.
	SanitizeHTML bool
}

// Engine orchestrates validation, persistence, caching and events for scoped
// settings.
type Engine struct {
	db     *gorm.DB
	cache  *cache.Cache
	bus    *events.Bus
	keys   *validation.KeyValidator
	values *validation.ValueValidator
	cfg    Config
}

// New wires an engine from its collaborators. The cache and bus may be nil;
// both degrade to no-ops.
func New(db *gorm.DB, c *cache.Cache, bus *events.Bus, keys *validation.KeyValidator, values *validation.ValueValidator, cfg Config) *Engine {
	return &Engine{
		db:     db,
		cache:  c,
		bus:    bus,
		keys:   keys,
		values: values,
		cfg:    cfg,
	}
}

// Cache exposes the cache layer, mainly for administrative flushes.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Bus exposes the event bus for subscriber registration.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Get returns the value stored under key in the given scope, falling back to
// def when the key (or its nested path) is absent. Persistence and cache
// failures degrade to def with a logged warning; only validation errors are
// surfaced.
func (e *Engine) Get(sc scope.Scope, key string, def any) (any, error) {
	if err := e.keys.Validate(key); err != nil {
		return def, err
	}

	mainKey, nestedPath := SplitKey(key)

	raw, ok := e.lookup(sc, mainKey)
	if !ok {
		observe("get", "default")
		return def, nil
	}

	value, ok := extract(raw, nestedPath)
	if !ok {
		observe("get", "default")
		return def, nil
	}

	observe("get", "ok")

	return value, nil
}

// Has reports whether key exists: the whole setting row for a plain key, the
// nested path within its value for a dotted one. Lookup failures degrade to
// false.
func (e *Engine) Has(sc scope.Scope, key string) (bool, error) {
	if err := e.keys.Validate(key); err != nil {
		return false, err
	}

	mainKey, nestedPath := SplitKey(key)

	raw, ok := e.lookup(sc, mainKey)
	if !ok {
		return false, nil
	}

	if nestedPath == "" {
		return true, nil
	}

	_, ok = extract(raw, nestedPath)

	return ok, nil
}

// Set stores value under key in the given scope. A dotted key deep-sets the
// nested path inside the existing value, preserving sibling fields; a plain
// key replaces the value wholesale.
func (e *Engine) Set(sc scope.Scope, key string, value any) error {
	return e.SetWithMeta(sc, key, value, nil, nil)
}

// SetWithMeta is Set with optional human-readable metadata; name and
// description are only written when non-nil.
func (e *Engine) SetWithMeta(sc scope.Scope, key string, value any, name, description *string) error {
	if e.cfg.SanitizeHTML {
		value = sanitizeHTML(value)
	}

	if err := e.keys.Validate(key); err != nil {
		observe("set", "invalid")
		return err
	}

	rawValue, err := e.values.Validate(key, value)
	if err != nil {
		observe("set", "invalid")
		return err
	}

	mainKey, nestedPath := SplitKey(key)

	// Read-merge-write: concurrent writers to different nested paths of the
	// same top-level key are last-writer-wins over the whole value.
	existing, err := e.load(sc, mainKey)
	if err != nil {
		observe("set", "error")
		return e.fail(err, "set", sc, key)
	}

	var oldValue any
	if existing != nil {
		oldValue, _ = extract(existing.Value, nestedPath)
	}

	changing := &events.Changing{
		Key:      key,
		Scope:    sc,
		OldValue: oldValue,
		NewValue: value,
		Context:  opContext("set", mainKey, nestedPath),
	}
	if !e.bus.PublishChanging(changing) {
		_, reason := changing.Cancelled()
		observe("set", "cancelled")

		return errors.Wrap(ErrCancelled, reason)
	}

	merged, err := mergeValue(existing, nestedPath, rawValue)
	if err != nil {
		observe("set", "error")
		return e.fail(err, "set", sc, key)
	}

	row, err := setting.Upsert(e.db, sc, mainKey, merged, name, description)
	if err != nil {
		observe("set", "error")
		return e.fail(err, "set", sc, key)
	}

	e.cache.PutValue(sc, mainKey, merged)

	e.bus.PublishChanged(&events.Changed{
		Key:       key,
		Scope:     sc,
		OldValue:  oldValue,
		NewValue:  value,
		SettingID: row.ID,
		Context:   opContext("set", mainKey, nestedPath),
	})
	observe("set", "ok")

	return nil
}

// SetMany validates and persists a batch of entries all-or-nothing: the
// whole batch fails validation with an aggregate naming every bad entry, and
// the repository groups every upsert in one transaction. Cache entries and
// Changed events follow after the commit. Pre-change events are not
// dispatched for batches.
func (e *Engine) SetMany(sc scope.Scope, batch map[string]any) error {
	if e.cfg.SanitizeHTML {
		// Sanitize into a copy; the caller's map stays untouched.
		cleaned := make(map[string]any, len(batch))
		for key, value := range batch {
			cleaned[key] = sanitizeHTML(value)
		}

		batch = cleaned
	}

	if err := validation.ValidateMany(e.keys, e.values, batch); err != nil {
		observe("set_many", "invalid")
		return err
	}

	// Entries are applied in key order, so a batch holding both a top-level
	// key and dotted keys beneath it resolves the same way every time: the
	// wholesale write first, the nested writes merged on top.
	keys := make([]string, 0, len(batch))
	for key := range batch {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	entries := make([]setting.Entry, 0, len(batch))
	merged := make(map[string][]byte, len(batch))

	for _, key := range keys {
		value := batch[key]

		rawValue, err := e.values.Encode(value)
		if err != nil {
			observe("set_many", "invalid")
			return err
		}

		mainKey, nestedPath := SplitKey(key)

		existing, err := e.load(sc, mainKey)
		if err != nil {
			observe("set_many", "error")
			return e.fail(err, "set_many", sc, key)
		}

		// A previous entry of this batch may already address the same row.
		if prev, ok := merged[mainKey]; ok {
			existing = &models.Setting{Value: prev}
		}

		full, err := mergeValue(existing, nestedPath, rawValue)
		if err != nil {
			observe("set_many", "error")
			return e.fail(err, "set_many", sc, key)
		}

		merged[mainKey] = full
	}

	for mainKey, full := range merged {
		entries = append(entries, setting.Entry{Key: mainKey, Value: full})
	}

	if err := setting.UpsertMany(e.db, sc, entries); err != nil {
		observe("set_many", "error")
		return e.fail(err, "set_many", sc, "")
	}

	for mainKey, full := range merged {
		e.cache.PutValue(sc, mainKey, full)
	}

	for _, key := range keys {
		mainKey, nestedPath := SplitKey(key)
		e.bus.PublishChanged(&events.Changed{
			Key:      key,
			Scope:    sc,
			NewValue: batch[key],
			Context:  opContext("set_many", mainKey, nestedPath),
		})
	}

	observe("set_many", "ok")

	return nil
}

// Forget removes key from the given scope: the whole setting row for a plain
// key, just the nested path for a dotted one (the row survives). It reports
// whether anything was removed; forgetting an absent key is a no-op.
func (e *Engine) Forget(sc scope.Scope, key string) (bool, error) {
	if err := e.keys.Validate(key); err != nil {
		observe("forget", "invalid")
		return false, err
	}

	mainKey, nestedPath := SplitKey(key)

	existing, err := e.load(sc, mainKey)
	if err != nil {
		observe("forget", "error")
		return false, e.fail(err, "forget", sc, key)
	}

	if existing == nil {
		observe("forget", "not_found")
		return false, nil
	}

	oldValue, ok := extract(existing.Value, nestedPath)
	if nestedPath != "" && !ok {
		observe("forget", "not_found")
		return false, nil
	}

	deleting := &events.Deleting{
		Key:      key,
		Scope:    sc,
		OldValue: oldValue,
		Context:  opContext("forget", mainKey, nestedPath),
	}
	if !e.bus.PublishDeleting(deleting) {
		_, reason := deleting.Cancelled()
		observe("forget", "cancelled")

		return false, errors.Wrap(ErrCancelled, reason)
	}

	if nestedPath == "" {
		if err := setting.Delete(e.db, sc, mainKey); err != nil {
			if goerrors.Is(err, setting.ErrSettingNotFound) {
				observe("forget", "not_found")
				return false, nil
			}

			observe("forget", "error")

			return false, e.fail(err, "forget", sc, key)
		}

		e.cache.ForgetValue(sc, mainKey)
	} else {
		remainder, err := deleteNested(existing.Value, nestedPath)
		if err != nil {
			observe("forget", "error")
			return false, e.fail(err, "forget", sc, key)
		}

		if _, err := setting.Upsert(e.db, sc, mainKey, remainder, nil, nil); err != nil {
			observe("forget", "error")
			return false, e.fail(err, "forget", sc, key)
		}

		e.cache.PutValue(sc, mainKey, remainder)
	}

	e.bus.PublishDeleted(&events.Deleted{
		Key:       key,
		Scope:     sc,
		OldValue:  oldValue,
		SettingID: existing.ID,
		Context:   opContext("forget", mainKey, nestedPath),
	})
	observe("forget", "ok")

	return true, nil
}

// Clear removes every setting of a scope in one operation and invalidates
// the scope's cache entries by tag.
func (e *Engine) Clear(sc scope.Scope) (int64, error) {
	deleted, err := setting.DeleteAllInScope(e.db, sc)
	if err != nil {
		observe("clear", "error")
		return 0, e.fail(err, "clear", sc, "")
	}

	e.cache.FlushScope(sc)
	observe("clear", "ok")

	return deleted, nil
}

// All returns every setting row, optionally restricted to one scope.
func (e *Engine) All(sc *scope.Scope) ([]models.Setting, error) {
	return setting.All(e.db, sc)
}

// Search returns every setting whose key matches a glob pattern, optionally
// restricted to one scope.
func (e *Engine) Search(pattern string, sc *scope.Scope) ([]models.Setting, error) {
	return setting.Search(e.db, pattern, sc)
}

// Stats summarizes the stored settings.
func (e *Engine) Stats() (*setting.Stats, error) {
	return setting.GetStats(e.db)
}

// lookup resolves the full raw value of a top-level key, cache first, then
// the repository (populating the cache on the way back). Repository errors
// degrade to a miss with a logged warning.
func (e *Engine) lookup(sc scope.Scope, mainKey string) ([]byte, bool) {
	if raw, ok := e.cache.GetValue(sc, mainKey); ok {
		return raw, true
	}

	row, err := setting.Find(e.db, sc, mainKey)
	if goerrors.Is(err, setting.ErrSettingNotFound) {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).
			Str("scope", sc.String()).
			Str("key", mainKey).
			Msg("settings lookup failed, degrading to default")

		return nil, false
	}

	e.cache.PutValue(sc, mainKey, row.Value)

	return row.Value, true
}

// load fetches the setting row for a top-level key, mapping "not found" to a
// nil row.
func (e *Engine) load(sc scope.Scope, mainKey string) (*models.Setting, error) {
	row, err := setting.Find(e.db, sc, mainKey)
	if goerrors.Is(err, setting.ErrSettingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return row, nil
}

// fail logs an operation failure with its full context and wraps the cause.
func (e *Engine) fail(err error, op string, sc scope.Scope, key string) error {
	log.Error().Err(err).
		Str("operation", op).
		Str("scope", sc.String()).
		Str("key", key).
		Msg("settings operation failed")

	return errors.Wrapf(err, "settings %s %q", op, key)
}

func opContext(op, mainKey, nestedPath string) map[string]any {
	return map[string]any{
		"operation":   op,
		"main_key":    mainKey,
		"nested_path": nestedPath,
	}
}

// sanitizeHTML escapes HTML in every string leaf, returning copies of
// container values so the caller's structures stay untouched.
func sanitizeHTML(value any) any {
	switch v := value.(type) {
	case string:
		return html.EscapeString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = sanitizeHTML(item)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeHTML(item)
		}

		return out
	default:
		return value
	}
}
