package watcher

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coursebot/backend/internal/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceEvent(t events.EventType, name string) *events.SourceFileEvent {
	return &events.SourceFileEvent{EventType: t, SourceName: name, EventTime: time.Now()}
}

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	received := make(chan string, 1)
	unsub := bus.Subscribe(events.SourceFileCreated, events.HandlerFunc(func(event events.Event) error {
		received <- event.(*events.SourceFileEvent).SourceName
		return nil
	}))
	defer unsub()

	bus.Publish(sourceEvent(events.SourceFileCreated, "syllabus.pdf"))

	select {
	case name := <-received:
		assert.Equal(t, "syllabus.pdf", name)
	case <-time.After(time.Second):
		t.Fatal("handler did not receive the event")
	}
}

func TestEventBus_SubscribeMultiple(t *testing.T) {
	bus := NewEventBus()

	var count atomic.Int32
	unsub := bus.SubscribeMultiple(
		[]events.EventType{events.SourceFileCreated, events.SourceFileRemoved},
		events.HandlerFunc(func(event events.Event) error {
			count.Add(1)
			return nil
		}),
	)
	defer unsub()

	bus.Publish(sourceEvent(events.SourceFileCreated, "a.txt"))
	bus.Publish(sourceEvent(events.SourceFileRemoved, "a.txt"))
	bus.Publish(sourceEvent(events.SourceFileModified, "a.txt"))

	bus.Close()
	assert.Equal(t, int32(2), count.Load())
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()

	var first, second atomic.Int32
	unsubFirst := bus.Subscribe(events.SourceFileModified, events.HandlerFunc(func(events.Event) error {
		first.Add(1)
		return nil
	}))
	bus.Subscribe(events.SourceFileModified, events.HandlerFunc(func(events.Event) error {
		second.Add(1)
		return nil
	}))

	unsubFirst()
	unsubFirst() // 重复调用无副作用

	bus.Publish(sourceEvent(events.SourceFileModified, "b.docx"))
	bus.Close()

	assert.Equal(t, int32(0), first.Load(), "unsubscribed handler must not run")
	assert.Equal(t, int32(1), second.Load())
}

func TestEventBus_ErrorAndPanicIsolation(t *testing.T) {
	bus := NewEventBus()

	var successCount atomic.Int32
	bus.Subscribe(events.SourceFileCreated, events.HandlerFunc(func(events.Event) error {
		return errors.New("handler error")
	}))
	bus.Subscribe(events.SourceFileCreated, events.HandlerFunc(func(events.Event) error {
		panic("handler panic")
	}))
	bus.Subscribe(events.SourceFileCreated, events.HandlerFunc(func(events.Event) error {
		successCount.Add(1)
		return nil
	}))

	require.NotPanics(t, func() {
		bus.Publish(sourceEvent(events.SourceFileCreated, "c.pptx"))
	})
	bus.Close()

	assert.Equal(t, int32(1), successCount.Load())
}

func TestEventBus_CloseWaitsForHandlersAndDropsLaterEvents(t *testing.T) {
	bus := NewEventBus()

	var done atomic.Bool
	var calls atomic.Int32
	bus.Subscribe(events.SourceFileCreated, events.HandlerFunc(func(events.Event) error {
		calls.Add(1)
		time.Sleep(150 * time.Millisecond)
		done.Store(true)
		return nil
	}))

	bus.Publish(sourceEvent(events.SourceFileCreated, "slow.pdf"))
	bus.Close()
	assert.True(t, done.Load(), "Close should wait for running handlers")

	bus.Publish(sourceEvent(events.SourceFileCreated, "late.pdf"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "events after Close are dropped")
	bus.Close()
}
