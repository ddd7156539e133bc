// Package audit records operator actions: sign-ins, logouts, stream checks and
// debug lookups.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ActionLogin         = "login"
	ActionLoginRejected = "login_rejected"
	ActionLogout        = "logout"
	ActionStreamCheck   = "stream_check"
	ActionRedisLookup   = "redis_lookup"
)

type Event struct {
	ID     uuid.UUID `json:"id"`
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target,omitempty"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(actor, action, target, status, detail string) Event {
	return Event{
		ID:     uuid.New(),
		At:     time.Now().UTC(),
		Actor:  actor,
		Action: action,
		Target: target,
		Status: status,
		Detail: detail,
	}
}

type Store interface {
	Record(ctx context.Context, ev Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// MemStore keeps the last max events in memory.
type MemStore struct {
	mu     sync.Mutex
	max    int
	events []Event
}

func NewMemStore(max int) *MemStore {
	if max <= 0 {
		max = 1000
	}
	return &MemStore{max: max}
}

func (m *MemStore) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if over := len(m.events) - m.max; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

func (m *MemStore) Recent(_ context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}
