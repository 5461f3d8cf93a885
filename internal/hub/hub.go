// Package hub implements the real-time fan-out of allocation state to
// connected observers.  A Hub instance is constructed once in main and
// injected into every handler that publishes or subscribes; there is
// no package-level registry.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/ticket-rush/internal/model"
)

// Event kinds pushed to subscribers.
const (
	TypeSeatUpdate  = "seat_update"
	TypeStockUpdate = "stock_update"
	TypeAllSeats    = "all_seats"
	TypeAllItems    = "all_items"
	TypeError       = "error"
)

// Actions carried by state-changing events.
const (
	ActionReserved  = "reserved"
	ActionCancelled = "cancelled"
	ActionPurchased = "purchased"
)

// Event is the wire payload delivered to every subscriber.  State-
// changing events carry a full fresh snapshot (Seats or Items) fetched
// after the mutation committed, so observers never diff partial
// updates.
type Event struct {
	Type     string           `json:"type"`
	Action   string           `json:"action,omitempty"`
	SeatID   uint64           `json:"seat_id,omitempty"`
	ItemID   uint64           `json:"item_id,omitempty"`
	Username string           `json:"username,omitempty"`
	Message  string           `json:"message,omitempty"`
	Seats    []model.SeatView `json:"seats,omitempty"`
	Items    []model.Item     `json:"items,omitempty"`
}

// Sender delivers one event to one subscriber.  The WebSocket handler
// wraps its connection in a Sender; tests substitute fakes.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// Hub tracks the set of live subscribers.  The set is mutated only on
// connect/disconnect and snapshotted on every broadcast, so publishing
// never iterates a map that a concurrent unsubscribe is shrinking.
type Hub struct {
	writeTimeout time.Duration

	mu   sync.RWMutex
	subs map[Sender]struct{}
}

// New constructs an empty hub.
func New() *Hub {
	return &Hub{
		writeTimeout: 5 * time.Second,
		subs:         make(map[Sender]struct{}),
	}
}

// Subscribe registers a subscriber until Unsubscribe is called.
func (h *Hub) Subscribe(s Sender) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	log.Printf("hub: subscriber connected, %d active", n)
}

// Unsubscribe removes a subscriber.  Broadcasts already in flight may
// still attempt a delivery to it; that delivery simply fails and is
// skipped.
func (h *Hub) Unsubscribe(s Sender) {
	h.mu.Lock()
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()
	log.Printf("hub: subscriber disconnected, %d active", n)
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast pushes the event to every subscriber registered at the
// moment of the call.  Deliveries run concurrently so a stalled
// socket costs only its own timeout, never the others' latency.
// Delivery is best-effort: a failure to one subscriber is logged and
// skipped, it neither aborts delivery to the others nor retries.
func (h *Hub) Broadcast(ctx context.Context, ev Event) {
	h.mu.RLock()
	targets := make([]Sender, 0, len(h.subs))
	for s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range targets {
		wg.Add(1)
		go func(s Sender) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			defer cancel()
			if err := s.Send(sendCtx, ev); err != nil {
				log.Printf("hub: delivery failed, skipping subscriber: %v", err)
			}
		}(s)
	}
	wg.Wait()
}
