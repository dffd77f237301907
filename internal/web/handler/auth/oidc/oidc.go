// Package oidc implements enterprise SSO login. The identity provider
// authenticates the user, the verified ID token is then exchanged with the
// platform for a regular API token.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/session"
)

const (
	// LoginPath is the path to initiate OIDC login.
	LoginPath = handler.RootPath + "auth/oidc/login"

	// CallbackPath is the path for OIDC callback.
	CallbackPath = handler.RootPath + "auth/oidc/callback"

	// stateTTL is how long a state token stays valid.
	stateTTL = 5 * time.Minute
)

// Service is the OIDC handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	deps     *handler.Deps
	verifier *gooidc.IDTokenVerifier
	oauth2   oauth2.Config

	mu         sync.Mutex
	stateStore map[string]time.Time
}

// Handler is the OIDC handler.
var Handler = Service{
	stateStore: make(map[string]time.Time),
}

// Init initializes the OIDC handler. With OIDC disabled in the configuration
// no routes are registered.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.deps = deps

	if !cfg.OIDC.Enabled {
		log.Info().Msg("OIDC authentication is disabled by configuration")

		return nil
	}

	provider, err := gooidc.NewProvider(context.Background(), cfg.OIDC.ProviderURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize OIDC provider - OIDC authentication will be disabled")

		return nil
	}

	s.verifier = provider.Verifier(&gooidc.Config{ClientID: cfg.OIDC.ClientID})

	scopes := cfg.OIDC.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	s.oauth2 = oauth2.Config{
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURL:  cfg.OIDC.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)

	log.Info().Msg("OIDC authentication provider initialized")

	return nil
}

// generateStateToken generates a random state token for CSRF protection.
func generateStateToken() (string, error) {
	b := make([]byte, 32) //nolint:mnd
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

// Login initiates the OIDC login flow.
func (s *Service) Login(c *fiber.Ctx) error {
	if s.verifier == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("OIDC authentication is not available")
	}

	state, err := generateStateToken()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate state token")

		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	s.mu.Lock()
	s.stateStore[state] = time.Now().Add(stateTTL)

	// opportunistic cleanup of stale states
	now := time.Now()
	for token, exp := range s.stateStore {
		if now.After(exp) {
			delete(s.stateStore, token)
		}
	}
	s.mu.Unlock()

	return c.Redirect(s.oauth2.AuthCodeURL(state))
}

// Callback handles the OIDC callback: code exchange, ID token verification
// and the final token exchange with the platform.
func (s *Service) Callback(c *fiber.Ctx) error {
	if s.verifier == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("OIDC authentication is not available")
	}

	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid callback parameters")
	}

	s.mu.Lock()
	expiration, exists := s.stateStore[state]
	delete(s.stateStore, state)
	s.mu.Unlock()

	if !exists || time.Now().After(expiration) {
		log.Warn().Msg("invalid or expired OIDC state token")

		return c.Status(fiber.StatusBadRequest).SendString("Invalid state token")
	}

	ctx := c.Context()

	oauth2Token, err := s.oauth2.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("OIDC code exchange failed")

		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		log.Error().Msg("no id_token in token response")

		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed")
	}

	if _, err = s.verifier.Verify(ctx, rawIDToken); err != nil {
		log.Error().Err(err).Msg("OIDC token verification failed")

		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed")
	}

	result, err := s.deps.Client.OIDCExchange(ctx, rawIDToken)
	if err != nil {
		log.Error().Err(err).Msg("platform rejected the OIDC identity")

		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed")
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")

		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	userSession := &session.Data{
		User:           result.User,
		OrganizationID: result.OrganizationID,
		LoggedInAt:     time.Now(),
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")

		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	s.deps.SaveToken(c, sessionID, result.Token)

	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	s.deps.Bus.Publish(events.Event{
		Topic:          events.TopicUserLogin,
		SessionID:      sessionID,
		UserID:         result.User.ID,
		OrganizationID: result.OrganizationID,
	})

	log.Info().Str("email", result.User.Email).Msg("user logged in via OIDC")

	return c.Redirect("/dashboard")
}
