package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"fintrack/internal/core"
)

// Wallets fetches every wallet for the current user. The summary response
// carries balances but no transaction pages.
func (c *Client) Wallets(ctx context.Context) ([]core.Wallet, error) {
	var wallets []core.Wallet
	if err := c.getJSON(ctx, "/api/wallets", nil, &wallets); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

// CreateWallet creates a named wallet and returns the backend's record.
func (c *Client) CreateWallet(ctx context.Context, name string) (core.Wallet, error) {
	if err := core.ValidateWalletName(name); err != nil {
		return core.Wallet{}, err
	}

	var wallet core.Wallet
	payload := struct {
		Name string `json:"name"`
	}{Name: name}
	if err := c.postJSON(ctx, "/api/wallets", payload, &wallet); err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	return wallet, nil
}

// DeleteWallet removes a wallet. The backend answers 204 on success.
func (c *Client) DeleteWallet(ctx context.Context, walletID string) error {
	path := "/api/wallets/" + url.PathEscape(walletID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, "", nil); err != nil {
		return fmt.Errorf("delete wallet %s: %w", walletID, err)
	}
	return nil
}
