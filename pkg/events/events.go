package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventWorkspaceAssigned EventType = "workspace.assigned"
	EventWorkspaceRunning  EventType = "workspace.running"
	EventWorkspaceFailed   EventType = "workspace.failed"
	EventWorkspaceStopped  EventType = "workspace.stopped"
	EventEditorAvailable   EventType = "editor.available"
	EventPoolSpawned       EventType = "pool.spawned"
	EventPoolSpawnFailed   EventType = "pool.spawn_failed"
	EventRecoveryTriggered EventType = "recovery.triggered"
)

// Event represents a lifecycle event
type Event struct {
	Type        EventType
	WorkspaceID string
	Timestamp   time.Time
	Message     string
	Metadata    map[string]string
}

// New builds an event for a workspace.
func New(t EventType, workspaceID, message string) *Event {
	return &Event{
		Type:        t,
		WorkspaceID: workspaceID,
		Timestamp:   time.Now().UTC(),
		Message:     message,
	}
}

// WithMeta attaches one metadata pair.
func (e *Event) WithMeta(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
