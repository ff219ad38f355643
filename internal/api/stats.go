package api

import (
	"context"
	"fmt"
	"net/url"
)

// WalletStats is the backend's server-side aggregate for one wallet. These
// figures come from the full transaction history, unlike the client-side
// aggregations which only see the loaded page.
type WalletStats struct {
	Balance          float64 `json:"balance"`
	Income           float64 `json:"income"`
	Expenses         float64 `json:"expenses"`
	Deposits         float64 `json:"deposits"`
	TransactionCount int     `json:"transaction_count"`
}

// Stats fetches the backend aggregate for a wallet.
func (c *Client) Stats(ctx context.Context, walletID string) (WalletStats, error) {
	query := url.Values{"wallet_id": {walletID}}

	var stats WalletStats
	if err := c.getJSON(ctx, "/api/stats", query, &stats); err != nil {
		return WalletStats{}, fmt.Errorf("wallet stats for %s: %w", walletID, err)
	}
	return stats, nil
}
