// Package tokenstore is the single source of truth for API bearer token access.
//
// Tokens are persisted through a prioritized list of backends (database,
// session storage, cookie). Reads return the first hit in priority order,
// writes and clears go to every backend best-effort: a failing sink is logged
// and skipped, never propagated.
package tokenstore

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrTokenNotFound is returned by backends when no token is stored under a key.
var ErrTokenNotFound = errors.New("token not found")

// Backend is a single token sink.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Read returns the token stored under key, or ErrTokenNotFound.
	Read(key string) (string, error)
	Write(key, token string) error
	Clear(key string) error
}

// Store multiplexes token access over prioritized backends.
type Store struct {
	backends []Backend
}

// New creates a store over the given backends, highest priority first.
func New(backends ...Backend) *Store {
	return &Store{backends: backends}
}

// With returns a derived store with extra backends appended at lowest priority.
// Used by the web layer to bind the per-request cookie backend.
func (s *Store) With(extra ...Backend) *Store {
	combined := make([]Backend, 0, len(s.backends)+len(extra))
	combined = append(combined, s.backends...)
	combined = append(combined, extra...)

	return &Store{backends: combined}
}

// Token returns the first token found under key in backend priority order.
func (s *Store) Token(key string) (string, bool) {
	token, _, ok := s.TokenWithSource(key)
	return token, ok
}

// TokenWithSource returns the token and the name of the backend that served it.
func (s *Store) TokenWithSource(key string) (string, string, bool) {
	for _, b := range s.backends {
		token, err := b.Read(key)
		if err == nil && token != "" {
			return token, b.Name(), true
		}

		if err != nil && !errors.Is(err, ErrTokenNotFound) {
			log.Warn().Err(err).Str("backend", b.Name()).Msg("token read failed")
		}
	}

	return "", "", false
}

// SaveToken writes the token to every backend. Individual failures are swallowed.
func (s *Store) SaveToken(key, token string) {
	for _, b := range s.backends {
		if err := b.Write(key, token); err != nil {
			log.Warn().Err(err).Str("backend", b.Name()).Msg("token write failed")
		}
	}
}

// ClearToken removes the token from every backend. Individual failures are swallowed.
func (s *Store) ClearToken(key string) {
	for _, b := range s.backends {
		if err := b.Clear(key); err != nil && !errors.Is(err, ErrTokenNotFound) {
			log.Warn().Err(err).Str("backend", b.Name()).Msg("token clear failed")
		}
	}
}
