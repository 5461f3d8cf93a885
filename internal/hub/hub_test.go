package hub_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-rush/internal/hub"
)

// recordingSender collects delivered events; setting fail makes every
// delivery error so tests can verify best-effort broadcasting.
type recordingSender struct {
	mu     sync.Mutex
	events []hub.Event
	fail   bool
}

func (s *recordingSender) Send(ctx context.Context, ev hub.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("boom")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSender) received() []hub.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]hub.Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := hub.New()
	a, b := &recordingSender{}, &recordingSender{}
	h.Subscribe(a)
	h.Subscribe(b)
	require.Equal(t, 2, h.Count())

	ev := hub.Event{Type: hub.TypeSeatUpdate, Action: hub.ActionReserved, SeatID: 3}
	h.Broadcast(context.Background(), ev)

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	assert.Equal(t, ev, a.received()[0])
	assert.Equal(t, ev, b.received()[0])
}

func TestBroadcastSkipsFailingSubscriber(t *testing.T) {
	h := hub.New()
	bad := &recordingSender{fail: true}
	good := &recordingSender{}
	h.Subscribe(bad)
	h.Subscribe(good)

	h.Broadcast(context.Background(), hub.Event{Type: hub.TypeStockUpdate})

	// The failure neither evicts the subscriber nor blocks the rest.
	assert.Len(t, good.received(), 1)
	assert.Equal(t, 2, h.Count())
}

// stalledSender blocks in Send until released, like a socket whose
// peer stopped reading.
type stalledSender struct {
	release chan struct{}
}

func (s *stalledSender) Send(ctx context.Context, ev hub.Event) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestBroadcastDoesNotStallOtherSubscribers(t *testing.T) {
	h := hub.New()
	stalled := &stalledSender{release: make(chan struct{})}
	fast := &recordingSender{}
	h.Subscribe(stalled)
	h.Subscribe(fast)

	done := make(chan struct{})
	go func() {
		h.Broadcast(context.Background(), hub.Event{Type: hub.TypeSeatUpdate})
		close(done)
	}()

	// The fast subscriber must get its event while the stalled one is
	// still blocking.
	require.Eventually(t, func() bool { return len(fast.received()) == 1 },
		time.Second, 10*time.Millisecond)

	close(stalled.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast did not finish after the stalled subscriber was released")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := hub.New()
	s := &recordingSender{}
	h.Subscribe(s)
	h.Broadcast(context.Background(), hub.Event{Type: hub.TypeAllSeats})
	h.Unsubscribe(s)
	h.Broadcast(context.Background(), hub.Event{Type: hub.TypeAllSeats})

	assert.Len(t, s.received(), 1)
	assert.Equal(t, 0, h.Count())
}

func TestConcurrentSubscribeAndBroadcast(t *testing.T) {
	h := hub.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := &recordingSender{}
			h.Subscribe(s)
			h.Broadcast(context.Background(), hub.Event{Type: hub.TypeStockUpdate})
			h.Unsubscribe(s)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.Count())
}
