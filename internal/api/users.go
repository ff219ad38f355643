package api

import (
	"context"
	"fmt"
)

// RegisterUser exchanges the identity provider's subject for a backend user
// id. Registration is idempotent: an already-known subject gets its existing
// id back.
func (c *Client) RegisterUser(ctx context.Context, email, externalID string) (string, error) {
	payload := struct {
		Email      string `json:"email"`
		ExternalID string `json:"external_id"`
	}{Email: email, ExternalID: externalID}

	var resp struct {
		UserID string `json:"user_id"`
	}
	if err := c.postJSON(ctx, "/api/users/register", payload, &resp); err != nil {
		return "", fmt.Errorf("register user: %w", err)
	}
	if resp.UserID == "" {
		return "", fmt.Errorf("register user: backend returned empty user id")
	}
	return resp.UserID, nil
}

// Health probes the backend. A nil error means it answered 2xx.
func (c *Client) Health(ctx context.Context) error {
	if err := c.getJSON(ctx, "/health", nil, nil); err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	return nil
}
