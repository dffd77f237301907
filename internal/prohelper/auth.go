package prohelper

import (
	"context"
	"fmt"
)

// Credentials is the password login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password and returns the issued bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var result LoginResult
	if err := c.post(ctx, "/lk/v1/auth/login", "", creds, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// OIDCExchange trades a verified OIDC identity token for a platform bearer token.
func (c *Client) OIDCExchange(ctx context.Context, idToken string) (*LoginResult, error) {
	var result LoginResult

	body := map[string]string{"id_token": idToken}
	if err := c.post(ctx, "/lk/v1/auth/oidc", "", body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Organizations lists the organizations visible to the user, the holding scope.
func (c *Client) Organizations(ctx context.Context, token string) ([]Organization, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var orgs []Organization
	if err := c.get(ctx, "/lk/v1/organizations", token, &orgs); err != nil {
		return nil, err
	}

	return orgs, nil
}

// SwitchOrganization changes the active organization of the token's session.
func (c *Client) SwitchOrganization(ctx context.Context, token string, orgID uint64) error {
	if token == "" {
		return ErrNoToken
	}

	return c.post(ctx, fmt.Sprintf("/lk/v1/organizations/%d/switch", orgID), token, nil, nil)
}

// OrganizationUsers lists the members of the active organization.
func (c *Client) OrganizationUsers(ctx context.Context, token string) ([]User, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var users []User
	if err := c.get(ctx, "/lk/v1/users", token, &users); err != nil {
		return nil, err
	}

	return users, nil
}

// InviteRequest is the body of a member invitation.
type InviteRequest struct {
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

// InviteUser invites a new member into the active organization.
// Field level validation problems surface as *ValidationError.
func (c *Client) InviteUser(ctx context.Context, token string, req InviteRequest) error {
	if token == "" {
		return ErrNoToken
	}

	return c.post(ctx, "/lk/v1/users/invite", token, req, nil)
}
