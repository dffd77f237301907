package prohelper

import (
	"context"
)

// SubscriptionLimits fetches the usage-vs-limit report of the current organization.
func (c *Client) SubscriptionLimits(ctx context.Context, token string) (*SubscriptionLimits, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var limits SubscriptionLimits
	if err := c.get(ctx, "/lk/v1/billing/limits", token, &limits); err != nil {
		return nil, err
	}

	return &limits, nil
}

// Balance fetches the organization account balance.
func (c *Client) Balance(ctx context.Context, token string) (*Balance, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var balance Balance
	if err := c.get(ctx, "/lk/v1/billing/balance", token, &balance); err != nil {
		return nil, err
	}

	return &balance, nil
}

// Transactions fetches the balance movements of the organization.
func (c *Client) Transactions(ctx context.Context, token string) ([]Transaction, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var transactions []Transaction
	if err := c.get(ctx, "/lk/v1/billing/transactions", token, &transactions); err != nil {
		return nil, err
	}

	return transactions, nil
}

// BillingInfo fetches the billing summary of the organization.
func (c *Client) BillingInfo(ctx context.Context, token string) (*BillingInfo, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var info BillingInfo
	if err := c.get(ctx, "/lk/v1/billing/info", token, &info); err != nil {
		return nil, err
	}

	return &info, nil
}
