// Package events implements the settings change notification bus. Four
// notification kinds exist: Changing and Deleting fire before a mutation and
// may cancel it through an explicit decision on the event, Changed and
// Deleted fire after the mutation committed. Dispatch is synchronous and a
// panicking subscriber never aborts the operation being notified about.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/settingsd/settingsd/internal/scope"
)

// Changing fires before a value is written. Subscribers may call Cancel to
// veto the write.
type Changing struct {
	Key      string
	Scope    scope.Scope
	OldValue any
	NewValue any
	Context  map[string]any

	cancelled bool
	reason    string
}

// Cancel vetoes the pending write. The first reason wins.
func (e *Changing) Cancel(reason string) {
	if !e.cancelled {
		e.cancelled = true
		e.reason = reason
	}
}

// Cancelled returns the veto decision and its reason.
func (e *Changing) Cancelled() (bool, string) {
	return e.cancelled, e.reason
}

// Changed fires after a value was written.
type Changed struct {
	Key       string
	Scope     scope.Scope
	OldValue  any
	NewValue  any
	SettingID uint64
	Context   map[string]any
}

// Deleting fires before a key is removed. Subscribers may call Cancel to
// veto the removal.
type Deleting struct {
	Key      string
	Scope    scope.Scope
	OldValue any
	Context  map[string]any

	cancelled bool
	reason    string
}

// Cancel vetoes the pending removal. The first reason wins.
func (e *Deleting) Cancel(reason string) {
	if !e.cancelled {
		e.cancelled = true
		e.reason = reason
	}
}

// Cancelled returns the veto decision and its reason.
func (e *Deleting) Cancelled() (bool, string) {
	return e.cancelled, e.reason
}

// Deleted fires after a key was removed (or a nested path pruned).
type Deleted struct {
	Key       string
	Scope     scope.Scope
	OldValue  any
	SettingID uint64
	Context   map[string]any
}

// Config toggles dispatch globally and per event kind.
type Config struct {
	Enabled  bool
	Changing bool
	Changed  bool
	Deleting bool
	Deleted  bool
}

// EnabledConfig dispatches every event kind.
func EnabledConfig() Config {
	return Config{Enabled: true, Changing: true, Changed: true, Deleting: true, Deleted: true}
}

// Bus dispatches settings notifications to registered subscribers, in
// registration order, synchronously.
type Bus struct {
	cfg Config

	mu         sync.RWMutex
	onChanging []func(*Changing)
	onChanged  []func(*Changed)
	onDeleting []func(*Deleting)
	onDeleted  []func(*Deleted)
}

// NewBus creates a bus with the given dispatch configuration.
func NewBus(cfg Config) *Bus {
	return &Bus{cfg: cfg}
}

// OnChanging registers a pre-write subscriber.
func (b *Bus) OnChanging(fn func(*Changing)) {
	b.mu.Lock()
	b.onChanging = append(b.onChanging, fn)
	b.mu.Unlock()
}

// OnChanged registers a post-write subscriber.
func (b *Bus) OnChanged(fn func(*Changed)) {
	b.mu.Lock()
	b.onChanged = append(b.onChanged, fn)
	b.mu.Unlock()
}

// OnDeleting registers a pre-delete subscriber.
func (b *Bus) OnDeleting(fn func(*Deleting)) {
	b.mu.Lock()
	b.onDeleting = append(b.onDeleting, fn)
	b.mu.Unlock()
}

// OnDeleted registers a post-delete subscriber.
func (b *Bus) OnDeleted(fn func(*Deleted)) {
	b.mu.Lock()
	b.onDeleted = append(b.onDeleted, fn)
	b.mu.Unlock()
}

// PublishChanging dispatches a Changing event and reports whether the write
// may proceed. A nil bus or disabled dispatch always proceeds.
func (b *Bus) PublishChanging(e *Changing) bool {
	if b == nil || !b.cfg.Enabled || !b.cfg.Changing {
		return true
	}

	b.mu.RLock()
	subscribers := b.onChanging
	b.mu.RUnlock()

	for _, fn := range subscribers {
		dispatch(func() { fn(e) })

		if cancelled, _ := e.Cancelled(); cancelled {
			return false
		}
	}

	return true
}

// PublishChanged dispatches a Changed event.
func (b *Bus) PublishChanged(e *Changed) {
	if b == nil || !b.cfg.Enabled || !b.cfg.Changed {
		return
	}

	b.mu.RLock()
	subscribers := b.onChanged
	b.mu.RUnlock()

	for _, fn := range subscribers {
		dispatch(func() { fn(e) })
	}
}

// PublishDeleting dispatches a Deleting event and reports whether the
// removal may proceed.
func (b *Bus) PublishDeleting(e *Deleting) bool {
	if b == nil || !b.cfg.Enabled || !b.cfg.Deleting {
		return true
	}

	b.mu.RLock()
	subscribers := b.onDeleting
	b.mu.RUnlock()

	for _, fn := range subscribers {
		dispatch(func() { fn(e) })

		if cancelled, _ := e.Cancelled(); cancelled {
			return false
		}
	}

	return true
}

// PublishDeleted dispatches a Deleted event.
func (b *Bus) PublishDeleted(e *Deleted) {
	if b == nil || !b.cfg.Enabled || !b.cfg.Deleted {
		return
	}

	b.mu.RLock()
	subscribers := b.onDeleted
	b.mu.RUnlock()

	for _, fn := range subscribers {
		dispatch(func() { fn(e) })
	}
}

// dispatch runs one subscriber, containing panics so a broken subscriber
// cannot abort the settings operation.
func dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("settings event subscriber panicked")
		}
	}()

	fn()
}
