// Package limits renders the subscription usage page.
package limits

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/web/guard"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/navigation"
)

const (
	// Path is the path to the limits page.
	Path = handler.RootPath + "billing/limits"

	// TemplateName is the name of the limits template.
	TemplateName = "billing/limits"
)

// Service is the limits handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the limits handler.
var Handler = Service{}

// Init initializes the limits handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.deps = deps

	app.Get(Path, deps.Guard.RequirePermission("billing.view"), s.Get)

	return nil
}

// Get renders the usage-vs-limit report.
func (s *Service) Get(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)

	nav := navigation.NewContext("Subscription", navigation.SectionBilling, "limits").
		AddBreadcrumb("Home", "/dashboard", false).
		AddBreadcrumb("Subscription", Path, true)

	state := s.deps.Billing.Get(sessionID)

	report, err := state.Limits.Refresh(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh subscription limits")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load subscription data")
	}

	return c.Render(TemplateName, fiber.Map{
		"Title":        s.cfg.Title,
		"Nav":          nav,
		"Menu":         s.deps.Guard.Menu(c, navigation.SectionBilling),
		"Report":       report,
		"Exceeded":     state.Limits.Exceeded(),
		"NeedsUpgrade": state.Limits.NeedsUpgrade(),
	}, handler.BaseLayout)
}
