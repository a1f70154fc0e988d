// Package lockctl talks to the local lock controller.
package lockctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client triggers lock releases over the controller's local HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Unlock asks the controller to release lockID. Any non-2xx response or
// transport failure is an error; the caller decides how to record it.
func (c *Client) Unlock(ctx context.Context, lockID string) error {
	body, err := json.Marshal(map[string]any{
		"lock_id":      lockID,
		"requested_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal unlock request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build unlock request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("lock controller: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("lock controller returned status %d", resp.StatusCode)
	}
	return nil
}
