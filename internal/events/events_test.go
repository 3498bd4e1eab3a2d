package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/settingsd/settingsd/internal/scope"
)

func TestPublishChanging(t *testing.T) {
	bus := NewBus(EnabledConfig())

	var seen []string
	bus.OnChanging(func(e *Changing) { seen = append(seen, "first:"+e.Key) })
	bus.OnChanging(func(e *Changing) { seen = append(seen, "second:"+e.Key) })

	e := &Changing{Key: "theme", Scope: scope.Global(), NewValue: "dark"}
	assert.True(t, bus.PublishChanging(e))
	assert.Equal(t, []string{"first:theme", "second:theme"}, seen)
}

func TestPublishChangingCancellation(t *testing.T) {
	bus := NewBus(EnabledConfig())

	var secondRan bool
	bus.OnChanging(func(e *Changing) { e.Cancel("locked down") })
	bus.OnChanging(func(*Changing) { secondRan = true })

	e := &Changing{Key: "theme"}
	assert.False(t, bus.PublishChanging(e))

	cancelled, reason := e.Cancelled()
	assert.True(t, cancelled)
	assert.Equal(t, "locked down", reason)

	// Dispatch stops at the cancelling subscriber.
	assert.False(t, secondRan)
}

func TestCancelFirstReasonWins(t *testing.T) {
	e := &Deleting{Key: "theme"}
	e.Cancel("first")
	e.Cancel("second")

	_, reason := e.Cancelled()
	assert.Equal(t, "first", reason)
}

func TestSubscriberPanicIsContained(t *testing.T) {
	bus := NewBus(EnabledConfig())

	var ran bool
	bus.OnChanged(func(*Changed) { panic("boom") })
	bus.OnChanged(func(*Changed) { ran = true })

	assert.NotPanics(t, func() {
		bus.PublishChanged(&Changed{Key: "theme"})
	})
	assert.True(t, ran)
}

func TestDisabledDispatch(t *testing.T) {
	var ran bool

	bus := NewBus(Config{Enabled: true, Changing: false})
	bus.OnChanging(func(*Changing) { ran = true })

	// Kind disabled: subscribers never run and a cancel cannot happen.
	assert.True(t, bus.PublishChanging(&Changing{Key: "theme"}))
	assert.False(t, ran)

	off := NewBus(Config{})
	off.OnDeleting(func(e *Deleting) { e.Cancel("never runs") })
	assert.True(t, off.PublishDeleting(&Deleting{Key: "theme"}))
}

func TestNilBus(t *testing.T) {
	var bus *Bus

	assert.True(t, bus.PublishChanging(&Changing{}))
	assert.True(t, bus.PublishDeleting(&Deleting{}))
	assert.NotPanics(t, func() {
		bus.PublishChanged(&Changed{})
		bus.PublishDeleted(&Deleted{})
	})
}

func TestPublishDeletingCancellation(t *testing.T) {
	bus := NewBus(EnabledConfig())
	bus.OnDeleting(func(e *Deleting) {
		if e.Key == "protected" {
			e.Cancel("protected key")
		}
	})

	assert.False(t, bus.PublishDeleting(&Deleting{Key: "protected"}))
	assert.True(t, bus.PublishDeleting(&Deleting{Key: "ordinary"}))
}
