package api

import (
	"context"
	"fmt"
	"net/url"

	"fintrack/internal/core"
)

// MutualFund is a fund tracked on the backend's v1 API.
type MutualFund struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ISIN        string  `json:"isin,omitempty"`
	LatestValue float64 `json:"latest_value"`
	Currency    string  `json:"currency,omitempty"`
}

// FundValue is one valuation point for a mutual fund.
type FundValue struct {
	Date  core.Date `json:"date"`
	Value float64   `json:"value"`
}

// MutualFunds lists the user's tracked funds.
func (c *Client) MutualFunds(ctx context.Context) ([]MutualFund, error) {
	var funds []MutualFund
	if err := c.getJSON(ctx, "/api/v1/mutual_funds", nil, &funds); err != nil {
		return nil, fmt.Errorf("list mutual funds: %w", err)
	}
	return funds, nil
}

// FundValues fetches the valuation history of one fund.
func (c *Client) FundValues(ctx context.Context, fundID string) ([]FundValue, error) {
	path := "/api/v1/mutual_funds/" + url.PathEscape(fundID) + "/values"

	var values []FundValue
	if err := c.getJSON(ctx, path, nil, &values); err != nil {
		return nil, fmt.Errorf("fund values for %s: %w", fundID, err)
	}
	return values, nil
}

// AddFundValue records a new valuation point for a fund.
func (c *Client) AddFundValue(ctx context.Context, fundID string, value FundValue) error {
	path := "/api/v1/mutual_funds/" + url.PathEscape(fundID) + "/values"
	if err := c.postJSON(ctx, path, value, nil); err != nil {
		return fmt.Errorf("add fund value for %s: %w", fundID, err)
	}
	return nil
}
