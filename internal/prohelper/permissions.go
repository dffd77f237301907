package prohelper

import (
	"context"
	"fmt"
)

// Permissions loads the authorization snapshot for the given interface surface.
func (c *Client) Permissions(ctx context.Context, token string, iface Interface) (*PermissionsData, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	if !iface.Valid() {
		iface = InterfaceLK
	}

	var data PermissionsData
	if err := c.get(ctx, fmt.Sprintf("/%s/v1/permissions", iface), token, &data); err != nil {
		return nil, err
	}

	return &data, nil
}

// CheckPermission performs a live, uncached permission check on the server.
func (c *Client) CheckPermission(ctx context.Context, token string, req CheckRequest) (*CheckResult, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var result CheckResult
	if err := c.post(ctx, "/lk/v1/permissions/check", token, req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
