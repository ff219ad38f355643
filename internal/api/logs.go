package api

import (
	"context"
	"fmt"

	"fintrack/internal/log"
)

// Ship implements log.Sink by posting the batch to the backend's log
// endpoint. This lets the shipper use the backend as its default sink.
func (c *Client) Ship(ctx context.Context, entries []log.Entry) error {
	payload := struct {
		Logs []log.Entry `json:"logs"`
	}{Logs: entries}

	if err := c.postJSON(ctx, "/api/logs/file", payload, nil); err != nil {
		return fmt.Errorf("ship logs: %w", err)
	}
	return nil
}
