package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/pagination"
)

// TransactionPage is one page of a wallet's transactions together with the
// backend's pagination descriptor, taken verbatim from the response.
type TransactionPage struct {
	Transactions []core.Transaction
	PageInfo     pagination.PageInfo
}

// FailedTransaction is a row the backend rejected during an upload.
type FailedTransaction struct {
	RowNumber int    `json:"row_number"`
	Reason    string `json:"reason"`
	RawData   string `json:"raw_data,omitempty"`
}

// Transactions fetches one page of a wallet's transactions. page is 1-based,
// matching the backend's convention.
func (c *Client) Transactions(ctx context.Context, walletID string, page, limit int) (TransactionPage, error) {
	query := url.Values{
		"wallet_id": {walletID},
		"page":      {strconv.Itoa(page)},
		"limit":     {strconv.Itoa(limit)},
	}

	// The descriptor fields sit flat next to the transaction list.
	var resp struct {
		Transactions []core.Transaction `json:"transactions"`
		pagination.PageInfo
	}
	if err := c.getJSON(ctx, "/api/transactions", query, &resp); err != nil {
		return TransactionPage{}, fmt.Errorf("list transactions for wallet %s: %w", walletID, err)
	}

	return TransactionPage{
		Transactions: resp.Transactions,
		PageInfo:     resp.PageInfo,
	}, nil
}

// TransactionErrors fetches the rows rejected by the most recent upload for
// a wallet.
func (c *Client) TransactionErrors(ctx context.Context, walletID string) ([]FailedTransaction, error) {
	query := url.Values{"wallet_id": {walletID}}

	var resp struct {
		FailedTransactions []FailedTransaction `json:"failed_transactions"`
	}
	if err := c.getJSON(ctx, "/api/transactions/errors", query, &resp); err != nil {
		return nil, fmt.Errorf("list transaction errors for wallet %s: %w", walletID, err)
	}
	return resp.FailedTransactions, nil
}
