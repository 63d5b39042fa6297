// Package events is the in-process publish/subscribe bus connecting the
// engine to the websocket stream and other listeners.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalUpdate     EventType = "SIGNAL_UPDATE"
	EventAuditCompleted   EventType = "AUDIT_COMPLETED"
	EventValidationUpdate EventType = "VALIDATION_UPDATE"
	EventActiveSignal     EventType = "ACTIVE_SIGNAL"
	EventRefreshStarted   EventType = "REFRESH_STARTED"
	EventRefreshCompleted EventType = "REFRESH_COMPLETED"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Delivery is asynchronous so a
// slow subscriber cannot block the publisher.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := b.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a fresh score for a symbol
func (b *Bus) PublishSignal(symbol, market string, score int, status string, confidence float64) {
	b.Publish(Event{
		Type: EventSignalUpdate,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"market":     market,
			"score":      score,
			"status":     status,
			"confidence": confidence,
		},
	})
}

// PublishAuditCompleted announces a finished audit run
func (b *Bus) PublishAuditCompleted(market, mode string, symbols int) {
	b.Publish(Event{
		Type: EventAuditCompleted,
		Data: map[string]interface{}{
			"market":  market,
			"mode":    mode,
			"symbols": symbols,
		},
	})
}

// PublishValidationUpdate announces a finished validation run
func (b *Bus) PublishValidationUpdate(market, mode string, validated bool, activeSignals int) {
	b.Publish(Event{
		Type: EventValidationUpdate,
		Data: map[string]interface{}{
			"market":         market,
			"mode":           mode,
			"validated":      validated,
			"active_signals": activeSignals,
		},
	})
}

// PublishError publishes an error event
func (b *Bus) PublishError(source, message string) {
	b.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"source":  source,
			"message": message,
		},
	})
}
