// Package replay drains the outbox to the remote endpoint with
// at-least-once semantics.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/store"
)

// DefaultBatchSize is how many unsynced events one replay pass handles.
const DefaultBatchSize = 30

// Replayer POSTs unsynced outbox events, oldest first, one JSON object per
// request. On the first failure in a batch it records the error on the
// triggering event and stops; the remainder is retried on the next pass in
// the same order.
type Replayer struct {
	store  store.OutboxStore
	url    string
	client *http.Client
	batch  int
	logger *zap.Logger
}

type Config struct {
	RemoteURL  string
	BatchSize  int // defaults to 30
	HTTPClient *http.Client
}

func NewReplayer(s store.OutboxStore, cfg Config, logger *zap.Logger) *Replayer {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Replayer{
		store:  s,
		url:    cfg.RemoteURL,
		client: client,
		batch:  batch,
		logger: logger,
	}
}

// RunOnce processes a single batch. The returned error is a store or
// cancellation failure; per-event delivery failures are recorded on the
// event and end the batch without being an error.
func (r *Replayer) RunOnce(ctx context.Context) error {
	events, err := r.store.ListUnsynced(ctx, r.batch)
	if err != nil {
		return fmt.Errorf("list unsynced: %w", err)
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.post(ctx, ev); err != nil {
			if ctx.Err() != nil {
				// Shutdown aborted the request; the event simply stays
				// unsynced for the next run.
				return ctx.Err()
			}
			if markErr := r.store.MarkError(ctx, ev.ID, err.Error()); markErr != nil {
				r.logger.Error("mark error failed",
					zap.String("event_id", ev.ID),
					zap.Error(markErr))
			}
			r.logger.Warn("outbox sync failed",
				zap.String("event_id", ev.ID),
				zap.String("event_type", ev.EventType),
				zap.Error(err))
			return nil
		}

		if err := r.store.MarkSynced(ctx, ev.ID); err != nil {
			return fmt.Errorf("mark synced %s: %w", ev.ID, err)
		}
	}
	return nil
}

func (r *Replayer) post(ctx context.Context, ev store.OutboxEvent) error {
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", ev.ID)
	req.Header.Set("X-Event-Type", ev.EventType)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote returned status %d", resp.StatusCode)
	}
	return nil
}
