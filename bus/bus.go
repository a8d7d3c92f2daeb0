// Package bus provides the in-process broadcast channel (channel A)
// connecting the catalog view to live canvas instances.
//
// Every canvas instance subscribes to EventAddAgentsToWorkflow and
// filters on its own tab id; the bus itself does no routing.
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/canvasflow/types"
)

// EventType identifies a broadcast event.
type EventType string

const (
	// EventAddAgentsToWorkflow carries catalog selections to canvas instances.
	EventAddAgentsToWorkflow EventType = types.EventAddAgentsToWorkflow

	// EventCanvasModified notifies the surrounding UI that a canvas changed.
	EventCanvasModified EventType = "canvasModified"
)

// subscriptionCounter generates unique subscription ids; an atomic
// counter avoids the collisions a timestamp-based id would have under
// concurrent subscribes.
var subscriptionCounter int64

// Event is a broadcast payload.
type Event interface {
	Timestamp() time.Time
	Type() EventType
}

// AgentsSelectedEvent is the channel A payload: a batch of catalog
// items targeted at one tab.
type AgentsSelectedEvent struct {
	// DeliveryID matches the pending record written for the same
	// selection; consumers use it to deliver once across both channels.
	DeliveryID string

	TabID  string
	Agents []types.AgentItem
	At     time.Time
}

// Type implements Event.
func (e AgentsSelectedEvent) Type() EventType { return EventAddAgentsToWorkflow }

// Timestamp implements Event.
func (e AgentsSelectedEvent) Timestamp() time.Time { return e.At }

// CanvasModifiedEvent signals that a tab's canvas gained nodes.
type CanvasModifiedEvent struct {
	TabID      string
	NodesAdded int
	At         time.Time
}

// Type implements Event.
func (e CanvasModifiedEvent) Type() EventType { return EventCanvasModified }

// Timestamp implements Event.
func (e CanvasModifiedEvent) Timestamp() time.Time { return e.At }

// EventHandler consumes broadcast events.
type EventHandler func(Event)

// EventBus is the broadcast bus contract.
type EventBus interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler EventHandler) string
	Unsubscribe(subscriptionID string)
	Stop()
}

// SimpleEventBus is a single-process EventBus backed by a buffered
// channel and one dispatch goroutine.
type SimpleEventBus struct {
	mu           sync.RWMutex
	handlers     map[EventType]map[string]EventHandler
	eventChannel chan Event
	done         chan struct{}
	stopOnce     sync.Once
	logger       *zap.Logger
}

// NewEventBus creates a new event bus. A nil logger falls back to a nop.
func NewEventBus(logger *zap.Logger) EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &SimpleEventBus{
		handlers:     make(map[EventType]map[string]EventHandler),
		eventChannel: make(chan Event, 100),
		done:         make(chan struct{}),
		logger:       logger.With(zap.String("component", "event_bus")),
	}
	go b.processEvents()
	return b
}

// Publish enqueues an event. If the bus is saturated the event is
// dropped; channel B exists precisely to cover missed broadcasts.
func (b *SimpleEventBus) Publish(event Event) {
	select {
	case b.eventChannel <- event:
	case <-b.done:
	default:
		b.logger.Warn("event bus saturated, dropping event",
			zap.String("event_type", string(event.Type())),
		)
	}
}

// Subscribe registers a handler and returns its subscription id.
func (b *SimpleEventBus) Subscribe(eventType EventType, handler EventHandler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]EventHandler)
	}

	id := fmt.Sprintf("%s-%d", eventType, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[eventType][id] = handler
	return id
}

// Unsubscribe removes a handler by subscription id.
func (b *SimpleEventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.handlers {
		if _, ok := handlers[subscriptionID]; ok {
			delete(handlers, subscriptionID)
			if len(handlers) == 0 {
				delete(b.handlers, eventType)
			}
			return
		}
	}
}

func (b *SimpleEventBus) processEvents() {
	for {
		select {
		case event := <-b.eventChannel:
			b.mu.RLock()
			src := b.handlers[event.Type()]
			handlers := make([]EventHandler, 0, len(src))
			for _, h := range src {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, handler := range handlers {
				func() {
					defer func() {
						if r := recover(); r != nil {
							b.logger.Error("event handler panicked", zap.Any("recover", r))
						}
					}()
					handler(event)
				}()
			}
		case <-b.done:
			return
		}
	}
}

// Stop shuts down the dispatch goroutine. Safe to call twice.
func (b *SimpleEventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}
