package events

import "sync"

// Type identifies a bus message type.
type Type string

const (
	TypeStatus     Type = "status"
	TypeTranscript Type = "transcript"
	TypeCompleted  Type = "completed"
)

// Event is a point-in-time notification for one session. Not persisted.
type Event struct {
	Type    Type           `json:"type"`
	Payload map[string]any `json:"payload"`
}

const subscriberBuffer = 32

// Bus fans out session events to live subscribers. Delivery is fire-and-forget:
// only subscribers connected at emit time receive an event, and a subscriber
// that falls behind its buffer loses events rather than blocking the producer.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Event
	nextID uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[uint64]chan Event)}
}

// Subscribe registers a listener for one session id. The returned cancel
// function must be called exactly once; it closes the channel.
func (b *Bus) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[uint64]chan Event)
	}
	b.subs[sessionID][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if listeners, ok := b.subs[sessionID]; ok {
			if _, ok := listeners[id]; ok {
				delete(listeners, id)
				close(ch)
			}
			if len(listeners) == 0 {
				delete(b.subs, sessionID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber of the session.
// Events from a single producer arrive in publish order.
func (b *Bus) Publish(sessionID string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports the listener count for a session.
func (b *Bus) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
