// Package login implements the password login page.
package login

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/db/controller/cooldown"
	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/prohelper"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/session"
)

const (
	// Path is the path to the login page.
	Path = "/login"

	// TemplateName is the name of the login template.
	TemplateName = "login"

	// ResendCooldown is how long a confirmation resend is locked after use.
	ResendCooldown = 60 * time.Second
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	db   *gorm.DB
	deps *handler.Deps
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.db = db
	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Get)
		router.Post(handler.RouterRootPath, s.Post)
		router.Post("/resend", s.Resend)
	})

	return nil
}

// form is the login form payload.
type form struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	ReturnTo string `form:"return_to"`
}

func (s *Service) renderForm(c *fiber.Ctx, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}

	data["Title"] = s.cfg.Title
	data["oidc_enabled"] = s.cfg.OIDC.Enabled
	data["return_to"] = sanitizeReturnTo(c.Query("return_to", c.FormValue("return_to")))

	if until := cooldown.Until(s.db); time.Now().Before(until) {
		data["resend_locked_until"] = until.Format(time.RFC3339)
	}

	return c.Render(TemplateName, data)
}

// Get handles the login page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	return s.renderForm(c, nil)
}

// Post handles the login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	payload := new(form)
	if err := c.BodyParser(payload); err != nil {
		return err
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		return s.renderForm(c, fiber.Map{"error": "Email and password are required"})
	}

	result, err := s.deps.Client.Login(c.Context(), prohelper.Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		log.Info().Err(err).Str("email", payload.Email).Msg("login rejected")

		return s.renderForm(c, fiber.Map{"error": "Invalid email or password"})
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")

		return s.renderForm(c, fiber.Map{"error": "Internal server error"})
	}

	userSession := &session.Data{
		User:           result.User,
		OrganizationID: result.OrganizationID,
		LoggedInAt:     time.Now(),
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")

		return s.renderForm(c, fiber.Map{"error": "Internal server error"})
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

	return c.Redirect(sanitizeReturnTo(payload.ReturnTo))
}

// Resend asks the platform to resend the confirmation email. The button is
// rate limited so an impatient user cannot spam the mailer.
func (s *Service) Resend(c *fiber.Ctx) error {
	now := time.Now()

	if cooldown.Active(s.db, now) {
		return s.renderForm(c, fiber.Map{
			"error": "Please wait before requesting another email",
		})
	}

	if err := cooldown.Start(s.db, now, ResendCooldown); err != nil {
		log.Error().Err(err).Msg("failed to persist resend cooldown")
	}

	return s.renderForm(c, fiber.Map{
		"info": "Confirmation email sent, check your inbox",
	})
}

// sanitizeReturnTo keeps redirects on this host. Anything absolute or
// protocol-relative falls back to the dashboard.
func sanitizeReturnTo(target string) string {
	if target == "" {
		return "/dashboard"
	}

	parsed, err := url.Parse(target)
	if err != nil || parsed.IsAbs() || parsed.Host != "" || !strings.HasPrefix(parsed.Path, "/") {
		return "/dashboard"
	}

	if strings.HasPrefix(parsed.Path, "//") {
		return "/dashboard"
	}

	return target
}
