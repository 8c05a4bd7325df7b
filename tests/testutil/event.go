package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
)

// RecordingHandler is an event handler that keeps what it receives and
// wakes waiters on every delivery.
type RecordingHandler struct {
	types []string

	mu     sync.Mutex
	events []shared.DomainEvent
	fail   error
	signal chan struct{}
}

// NewRecordingHandler subscribes to types, or to every event when none are given
func NewRecordingHandler(types ...string) *RecordingHandler {
	return &RecordingHandler{types: types, signal: make(chan struct{}, 1)}
}

func (h *RecordingHandler) EventTypes() []string { return h.types }

func (h *RecordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	h.events = append(h.events, event)
	err := h.fail
	h.mu.Unlock()

	select {
	case h.signal <- struct{}{}:
	default:
	}
	return err
}

// FailWith makes later deliveries return err. They are still recorded.
func (h *RecordingHandler) FailWith(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail = err
}

func (h *RecordingHandler) Events() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.events)
}

func (h *RecordingHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// Await blocks until n events arrived or timeout elapses
func (h *RecordingHandler) Await(n int, timeout time.Duration) bool {
	expired := time.After(timeout)
	for h.Count() < n {
		select {
		case <-h.signal:
		case <-expired:
			return h.Count() >= n
		}
	}
	return true
}
