package api

import (
	"sync"
)

// EventType classifies a broadcast event.
type EventType string

const (
	// EventTypeState is a VM state snapshot (IPtr, registers, cycles).
	EventTypeState EventType = "state"
	// EventTypeOutput is console output from an ecall.
	EventTypeOutput EventType = "output"
	// EventTypeExecution marks a run-loop transition (breakpoint, halt,
	// runtime error).
	EventTypeExecution EventType = "event"
)

// BroadcastEvent is one message fanned out to stream subscribers.
type BroadcastEvent struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"sessionId"`
	Data      map[string]interface{} `json:"data"`
}

// Subscription is one subscriber's view of the event stream. Events arrive
// on Channel; the broadcaster closes it on Unsubscribe or shutdown.
type Subscription struct {
	SessionID  string             // empty follows every session
	EventTypes map[EventType]bool // empty follows every event type
	Channel    chan BroadcastEvent
}

func (s *Subscription) wants(event BroadcastEvent) bool {
	if s.SessionID != "" && s.SessionID != event.SessionID {
		return false
	}
	if len(s.EventTypes) > 0 && !s.EventTypes[event.Type] {
		return false
	}
	return true
}

// Broadcaster fans events out to every matching subscription. Delivery is
// best-effort: a subscriber whose channel is full misses the event rather
// than stalling the VM-facing caller.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[*Subscription]bool
	closed        bool
}

// NewBroadcaster returns a broadcaster ready for subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscriptions: make(map[*Subscription]bool),
	}
}

// Subscribe registers a new subscription filtered by session and event
// types. Subscribing to a closed broadcaster yields an already-closed
// channel, so the caller's drain loop ends immediately.
func (b *Broadcaster) Subscribe(sessionID string, eventTypes []EventType) *Subscription {
	eventTypeMap := make(map[EventType]bool, len(eventTypes))
	for _, et := range eventTypes {
		eventTypeMap[et] = true
	}

	sub := &Subscription{
		SessionID:  sessionID,
		EventTypes: eventTypeMap,
		Channel:    make(chan BroadcastEvent, 64),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.Channel)
		return sub
	}
	b.subscriptions[sub] = true
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Unknown or
// already-removed subscriptions are a no-op.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscriptions[sub] {
		delete(b.subscriptions, sub)
		close(sub.Channel)
	}
}

// Broadcast delivers event to every matching subscription without ever
// blocking the caller.
func (b *Broadcaster) Broadcast(event BroadcastEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for sub := range b.subscriptions {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.Channel <- event:
		default:
			// Slow subscriber; drop this event for it.
		}
	}
}

// BroadcastState sends a state-snapshot event for sessionID.
func (b *Broadcaster) BroadcastState(sessionID string, data map[string]interface{}) {
	b.Broadcast(BroadcastEvent{Type: EventTypeState, SessionID: sessionID, Data: data})
}

// BroadcastOutput sends console output for sessionID.
func (b *Broadcaster) BroadcastOutput(sessionID string, stream string, content string) {
	b.Broadcast(BroadcastEvent{
		Type:      EventTypeOutput,
		SessionID: sessionID,
		Data: map[string]interface{}{
			"stream":  stream,
			"content": content,
		},
	})
}

// BroadcastExecutionEvent sends a run-loop transition (breakpoint, halt,
// error) with its details.
func (b *Broadcaster) BroadcastExecutionEvent(sessionID string, eventName string, details map[string]interface{}) {
	data := map[string]interface{}{"event": eventName}
	for k, v := range details {
		data[k] = v
	}
	b.Broadcast(BroadcastEvent{Type: EventTypeExecution, SessionID: sessionID, Data: data})
}

// Close shuts the broadcaster down, closing every subscription channel.
// Later Broadcast calls are silently dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscriptions {
		close(sub.Channel)
	}
	b.subscriptions = make(map[*Subscription]bool)
}

// SubscriptionCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}
