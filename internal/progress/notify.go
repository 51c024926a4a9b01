package progress

import (
	"context"
	"sync"
	"time"
)

// Event kinds emitted by the stores.
const (
	EventStatusChanged = "status_changed"
	EventScoreAdded    = "score_added"
	EventScoreDeleted  = "score_deleted"
)

// Event is a user-facing notification about a state or ledger change.
type Event struct {
	Kind    string    `json:"kind"`
	Topic   string    `json:"topic"`
	Status  string    `json:"status,omitempty"`
	Score   *int      `json:"score,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives store events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NopNotifier drops all events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// MemoryNotifier records events for tests.
type MemoryNotifier struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) Notify(_ context.Context, event Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *MemoryNotifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event{}, n.events...)
}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return NopNotifier{}
	}
	return n
}
