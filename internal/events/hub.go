package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity. A job emits
// at most a handful of events, so a small buffer never drops in practice.
const DefaultSubscriberBuffer = 8

// Hub is an EventHandler that forwards each event to the subscribers of its
// job. Slow subscribers lose events instead of blocking the runner.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[chan *JobEvent]struct{}
	buffer int
}

var _ EventHandler = (*Hub)(nil)

// NewHub creates a Hub. A non-positive buffer uses DefaultSubscriberBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[chan *JobEvent]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel of events for jobID and a function that ends
// the subscription. The channel is closed after the terminal event or when
// the returned function is called, whichever comes first.
func (h *Hub) Subscribe(jobID uuid.UUID) (<-chan *JobEvent, func()) {
	ch := make(chan *JobEvent, h.buffer)

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan *JobEvent]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.remove(jobID, ch)
		})
	}
}

// remove closes ch if it is still registered. Callers hold h.mu.
func (h *Hub) remove(jobID uuid.UUID, ch chan *JobEvent) {
	set, ok := h.subs[jobID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, jobID)
	}
}

// Subscribers returns the number of open subscriptions for jobID.
func (h *Hub) Subscribers(jobID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

// HandleEvent implements EventHandler.
func (h *Hub) HandleEvent(_ context.Context, event *JobEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[event.JobID] {
		select {
		case ch <- event:
		default:
		}
	}

	if event.Terminal() {
		for ch := range h.subs[event.JobID] {
			h.remove(event.JobID, ch)
		}
	}
	return nil
}
