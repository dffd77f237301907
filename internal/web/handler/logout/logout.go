// Package logout tears down the session.
package logout

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/tokenstore"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/session"
)

// Path is the path to the logout endpoint.
const Path = "/logout"

// Service is the logout handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.deps = deps

	app.Get(Path, s.Get)
	app.Post(Path, s.Get)

	return nil
}

// Get destroys the session, clears the stored token and redirects to login.
func (s *Service) Get(c *fiber.Ctx) error {
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return c.Redirect("/login")
	}

	sessData := new(session.Data)
	_ = sessData.Read(sessionID)

	if err := session.Destroy(sessionID); err != nil {
		log.Warn().Err(err).Msg("failed to destroy session")
	}

	s.deps.Tokens.ClearToken(sessionID)

	c.ClearCookie("session")
	c.ClearCookie(tokenstore.CookieName)

	s.deps.Bus.Publish(events.Event{
		Topic:     events.TopicUserLogout,
		SessionID: sessionID,
		UserID:    sessData.User.ID,
	})

	return c.Redirect("/login")
}
