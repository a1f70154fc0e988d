package store

import (
	"context"
	"time"
)

// MaxErrorLen bounds the last_error column; longer messages are truncated.
const MaxErrorLen = 400

// OutboxEvent is one security-relevant event awaiting confirmed delivery.
// Owned exclusively by the outbox: no other component retains a reference
// after Append. Events are never deleted; retention is an external concern.
type OutboxEvent struct {
	ID        string
	EventType string
	Payload   map[string]any
	CreatedAt time.Time
	Synced    bool
	SyncedAt  *time.Time
	LastError string
}

// OutboxStore is the durable local-first event log. Every state-changing
// core operation (decisions, alerts, check-ins, parse and transport
// errors) appends exactly one event here, making the outbox the single
// source of truth for what happened regardless of downstream delivery.
//
// Append must not return before the event is committed to stable storage.
// Appends from concurrent callers are serialized by the implementation.
type OutboxStore interface {
	Append(ctx context.Context, eventType string, payload map[string]any) (string, error)
	ListUnsynced(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkSynced(ctx context.Context, eventID string) error
	MarkError(ctx context.Context, eventID, message string) error
}

// TruncateError bounds an error message to MaxErrorLen for storage.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorLen {
		return msg[:MaxErrorLen]
	}
	return msg
}
