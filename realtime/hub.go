// hub.go - Registry of live subscribers and best-effort broadcast
//
// Transports (WebSocket, SSE) register a Subscriber when a client
// connects and unregister it on disconnect. Broadcast walks a snapshot of
// the registry and never blocks: a subscriber whose buffer is full is
// dropped. Nothing is persisted, so a client that connects after an event
// never sees it.
package realtime

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"cima-backend/logging"
)

// Event names pushed to clients.
const (
	EventNewReport = "newReport"
	EventPing      = "ping"
	EventPong      = "pong"
)

const subscriberBuffer = 64

// Message is the frame delivered to subscribers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

var subscriberIDs atomic.Uint64

// Subscriber is one connected client as seen by the hub.
type Subscriber struct {
	id   uint64
	send chan Message
}

func (s *Subscriber) ID() uint64 { return s.id }

// Messages is closed when the hub drops the subscriber or shuts down.
func (s *Subscriber) Messages() <-chan Message { return s.send }

type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	closed bool

	// OnCountChange, when set, observes the subscriber count after every
	// registration change.
	OnCountChange func(n int)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscriber)}
}

// Subscribe registers a new subscriber. After Hub.Close it returns a
// subscriber whose channel is already closed.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{id: subscriberIDs.Add(1), send: make(chan Message, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.send)
		return sub
	}
	h.subs[sub.id] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.countChanged(n)
	logging.Debug().Uint64("subscriber", sub.id).Int("total", n).Msg("realtime subscriber connected")
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub.id)
	close(sub.send)
	n := len(h.subs)
	h.mu.Unlock()

	h.countChanged(n)
	logging.Debug().Uint64("subscriber", sub.id).Int("total", n).Msg("realtime subscriber disconnected")
}

// Broadcast delivers an event to every subscriber registered at the time
// of the call and returns how many received it.
func (h *Hub) Broadcast(eventType string, data any) int {
	msg := Message{Type: eventType, Data: data}

	h.mu.RLock()
	snapshot := make([]*Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

	var delivered int
	var slow []*Subscriber
	for _, sub := range snapshot {
		select {
		case sub.send <- msg:
			delivered++
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		logging.Warn().Uint64("subscriber", sub.id).Str("event", eventType).Msg("realtime subscriber too slow, dropping")
		h.Unsubscribe(sub)
	}
	return delivered
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	n := len(h.subs)
	for id, sub := range h.subs {
		close(sub.send)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	h.countChanged(0)
	logging.Info().Str("component", "realtime-hub").Int("clients_closed", n).Msg("realtime hub stopped")
}

// RunWithContext blocks until ctx ends, then closes the hub.
func (h *Hub) RunWithContext(ctx context.Context) error {
	<-ctx.Done()
	h.Close()
	return ctx.Err()
}

func (h *Hub) countChanged(n int) {
	if h.OnCountChange != nil {
		h.OnCountChange(n)
	}
}
