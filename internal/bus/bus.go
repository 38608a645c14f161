// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for the avatar driver
const (
	// Rig events
	EventTypeRigLoaded   EventType = "rig.loaded"
	EventTypeRigFallback EventType = "rig.fallback"
	EventTypeRigFailed   EventType = "rig.failed"
	EventTypeRigBound    EventType = "rig.bound"
	EventTypeRigUnbound  EventType = "rig.unbound"

	// Audio session events
	EventTypeSessionStarted EventType = "audio.session_started"
	EventTypeSessionStopped EventType = "audio.session_stopped"
	EventTypeSessionFailed  EventType = "audio.session_failed"

	// Speech gate events
	EventTypeSpeechStart EventType = "audio.speech_start"
	EventTypeSpeechEnd   EventType = "audio.speech_end"

	// Viewport events
	EventTypeViewportResized EventType = "viewport.resized"

	// Config events
	EventTypeConfigReloaded EventType = "config.reloaded"
)

// AllEventTypes lists every event type, for subscribers that forward
// everything.
var AllEventTypes = []EventType{
	EventTypeRigLoaded, EventTypeRigFallback, EventTypeRigFailed,
	EventTypeRigBound, EventTypeRigUnbound,
	EventTypeSessionStarted, EventTypeSessionStopped, EventTypeSessionFailed,
	EventTypeSpeechStart, EventTypeSpeechEnd,
	EventTypeViewportResized,
	EventTypeConfigReloaded,
}

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

// Publish sends an event to all subscribed handlers without waiting.
// A nil bus drops the event.
func (b *EventBus) Publish(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	var wg sync.WaitGroup
	for _, handler := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

func (b *EventBus) snapshot(t EventType) []Handler {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	return handlers
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
