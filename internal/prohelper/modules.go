package prohelper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Modules fetches the module catalog.
//
// The backend is free to return either a flat array or an object keyed by
// category (e.g. {"core": [...], "addon": [...]}). Both shapes are normalized
// into one flat list here, and nowhere else; category keys are preserved on
// the records in encounter order.
func (c *Client) Modules(ctx context.Context, token string) ([]Module, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	data, err := c.do(ctx, http.MethodGet, "/lk/v1/billing/modules", token, nil)
	if err != nil {
		return nil, err
	}

	return flattenModules(data)
}

// ActiveModules fetches the activation records of the organization.
func (c *Client) ActiveModules(ctx context.Context, token string) ([]ActivatedModule, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var active []ActivatedModule
	if err := c.get(ctx, "/lk/v1/billing/modules/active", token, &active); err != nil {
		return nil, err
	}

	return active, nil
}

// ExpiringModules fetches modules whose paid period ends soon.
func (c *Client) ExpiringModules(ctx context.Context, token string) ([]ActivatedModule, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var expiring []ActivatedModule
	if err := c.get(ctx, "/lk/v1/billing/modules/expiring", token, &expiring); err != nil {
		return nil, err
	}

	return expiring, nil
}

// ActivateModule activates a module for the organization.
// A 402 surfaces as ErrPaymentRequired.
func (c *Client) ActivateModule(ctx context.Context, token, slug string) error {
	if token == "" {
		return ErrNoToken
	}

	return c.post(ctx, fmt.Sprintf("/lk/v1/billing/modules/%s/activate", slug), token, nil, nil)
}

// DeactivateModule deactivates a module for the organization.
func (c *Client) DeactivateModule(ctx context.Context, token, slug string) error {
	if token == "" {
		return ErrNoToken
	}

	return c.post(ctx, fmt.Sprintf("/lk/v1/billing/modules/%s/deactivate", slug), token, nil, nil)
}

// RenewModule renews a module for the organization.
// A 402 surfaces as ErrPaymentRequired.
func (c *Client) RenewModule(ctx context.Context, token, slug string) error {
	if token == "" {
		return ErrNoToken
	}

	return c.post(ctx, fmt.Sprintf("/lk/v1/billing/modules/%s/renew", slug), token, nil, nil)
}

// flattenModules normalizes the two possible catalog wire shapes into one list.
func flattenModules(data json.RawMessage) ([]Module, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("modules payload is empty")
	}

	// flat array shape
	if trimmed[0] == '[' {
		var modules []Module
		if err := json.Unmarshal(trimmed, &modules); err != nil {
			return nil, errors.Wrap(err, "failed to decode module list")
		}

		return modules, nil
	}

	if trimmed[0] != '{' {
		return nil, errors.New("modules payload is neither a list nor a category object")
	}

	// category-keyed object shape; a json.Decoder keeps the key encounter order
	dec := json.NewDecoder(bytes.NewReader(trimmed))

	// opening brace
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "failed to decode module categories")
	}

	var flat []Module

	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode module category key")
		}

		category, ok := keyToken.(string)
		if !ok {
			return nil, errors.New("module category key is not a string")
		}

		var group []Module
		if err := dec.Decode(&group); err != nil {
			return nil, errors.Wrapf(err, "failed to decode module category %q", category)
		}

		for i := range group {
			if group[i].Category == "" {
				group[i].Category = category
			}
		}

		flat = append(flat, group...)
	}

	return flat, nil
}
