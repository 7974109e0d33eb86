package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WaitReady polls the server's /health endpoint until it reports ok or the
// window elapses. The monitor refuses to start without a ready backend.
func (c *Client) WaitReady(ctx context.Context, window time.Duration) error {
	deadline := time.Now().Add(window)

	for {
		if c.healthy(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("inference server at %s not ready after %s", c.cfg.BaseURL, window)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *Client) healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "ok"
}
