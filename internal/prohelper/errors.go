package prohelper

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoToken is returned when an authenticated call is attempted without a token.
	ErrNoToken = errors.New("no api token available")

	// ErrNotFound is returned on 404, usually an endpoint that is not yet available.
	ErrNotFound = errors.New("endpoint not found")

	// ErrUnauthorized is returned on 401, the token is missing or expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPaymentRequired is returned on 402, the organization balance does not
	// cover the requested operation.
	ErrPaymentRequired = errors.New("insufficient funds")
)

// StatusError carries a non-2xx response or a rejected envelope.
type StatusError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api responded with status %d", e.Code)
	}

	return fmt.Sprintf("api responded with status %d: %s", e.Code, e.Message)
}

// ValidationError carries the field level error map of a 422 response.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "validation failed"
	}

	return e.Message
}

// statusToError maps an HTTP status to the package error taxonomy.
func statusToError(status int, raw []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusPaymentRequired:
		return ErrPaymentRequired
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnprocessableEntity:
		var env envelope
		_ = json.Unmarshal(raw, &env)

		return &ValidationError{Message: env.Message, Fields: env.Errors}
	default:
		var env envelope
		_ = json.Unmarshal(raw, &env)

		return &StatusError{Code: status, Message: env.Message}
	}
}
