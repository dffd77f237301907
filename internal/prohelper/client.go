// Package prohelper implements the HTTP client for the ProHelper platform API.
//
// The API is an external collaborator: every payload travels in a
// {success, data, message} envelope and authorization uses bearer tokens.
// This package owns the wire shapes and the error taxonomy; callers get typed
// results and typed errors, never raw HTTP details.
package prohelper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds every API round trip.
	DefaultTimeout = 15 * time.Second
)

// Interface is the audience tag selecting which API surface applies.
type Interface string

const (
	// InterfaceLK is the personal dashboard surface.
	InterfaceLK Interface = "lk"
	// InterfaceAdmin is the admin surface.
	InterfaceAdmin Interface = "admin"
	// InterfaceMobile is the mobile surface.
	InterfaceMobile Interface = "mobile"
)

// Valid reports whether the interface tag is one of the known surfaces.
func (i Interface) Valid() bool {
	switch i {
	case InterfaceLK, InterfaceAdmin, InterfaceMobile:
		return true
	}

	return false
}

// Client talks to the ProHelper platform API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given API base URL.
// A zero timeout falls back to DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope is the wire-level response wrapper of every endpoint.
type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// do performs one API round trip and returns the envelope data payload.
func (c *Client) do(ctx context.Context, method, path, token string, body any) (json.RawMessage, error) {
	var reqBody io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}

		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if err := statusToError(resp.StatusCode, raw); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "malformed response envelope")
	}

	if !env.Success {
		log.Debug().Str("path", path).Str("message", env.Message).Msg("api call rejected")

		return nil, &StatusError{Code: resp.StatusCode, Message: env.Message}
	}

	return env.Data, nil
}

// get performs a GET and decodes the data payload into out.
func (c *Client) get(ctx context.Context, path, token string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}

	return decode(data, out)
}

// post performs a POST and decodes the data payload into out when out is non-nil.
func (c *Client) post(ctx context.Context, path, token string, body, out any) error {
	data, err := c.do(ctx, http.MethodPost, path, token, body)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return decode(data, out)
}

func decode(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return errors.New("response envelope carries no data")
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to decode response data")
	}

	return nil
}
