// Package memory provides an in-memory outbox for tests and dev runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/store"
)

// OutboxStore is an in-memory OutboxStore implementation. It mirrors the
// sqlite store's ordering semantics (oldest created first) so tests
// exercising the replay loop behave the same against either backend.
type OutboxStore struct {
	mu     sync.Mutex
	events []store.OutboxEvent
	now    func() time.Time
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the append timestamp source. Test-only helper.
func (s *OutboxStore) SetClock(now func() time.Time) { s.now = now }

func (s *OutboxStore) Append(_ context.Context, eventType string, payload map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := store.OutboxEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Payload:   payload,
		CreatedAt: s.now(),
	}
	s.events = append(s.events, ev)
	return ev.ID, nil
}

func (s *OutboxStore) ListUnsynced(_ context.Context, limit int) ([]store.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.OutboxEvent, 0, limit)
	for _, ev := range s.events {
		if ev.Synced {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *OutboxStore) MarkSynced(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == eventID {
			t := s.now()
			s.events[i].Synced = true
			s.events[i].SyncedAt = &t
			s.events[i].LastError = ""
			break
		}
	}
	return nil
}

func (s *OutboxStore) MarkError(_ context.Context, eventID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events[i].LastError = store.TruncateError(message)
			break
		}
	}
	return nil
}

// Events returns a copy of everything appended. Test-only helper.
func (s *OutboxStore) Events() []store.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.OutboxEvent, len(s.events))
	copy(out, s.events)
	return out
}
