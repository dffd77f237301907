// Package dashboard renders the authenticated start page: the authorization
// snapshot summary, subscription warnings and expiring modules.
package dashboard

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/permissions"
	"github.com/prohelper/prohelper-web/internal/prohelper"
	"github.com/prohelper/prohelper-web/internal/web/guard"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/navigation"
)

const (
	// Path is the path to the dashboard page.
	Path = handler.RootPath + "dashboard"

	// TemplateName is the name of the dashboard template.
	TemplateName = "dashboard/dashboard"
)

// Service is the dashboard handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the dashboard handler.
var Handler = Service{}

// Init initializes the dashboard handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.deps = deps

	// no specific criterion, a valid session with a loadable snapshot is enough
	app.Get(Path,
		deps.Guard.RequireAccess(permissions.AccessOptions{}),
		s.Get,
	)

	return nil
}

// Get handles the dashboard page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)

	nav := navigation.NewContext("Dashboard", navigation.SectionDashboard, "dashboard").
		AddBreadcrumb("Home", Path, false).
		AddBreadcrumb("Dashboard", Path, true)

	manager := s.deps.Permissions.Get(sessionID)

	snapshot, err := manager.Load(c.Context())
	if err != nil && snapshot == nil {
		log.Error().Err(err).Msg("failed to load permission snapshot for dashboard")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load account data")
	}

	state := s.deps.Billing.Get(sessionID)

	// subscription context is decoration here, the page renders without it
	limits, limitsErr := state.Limits.Refresh(c.Context())
	if limitsErr != nil {
		log.Debug().Err(limitsErr).Msg("subscription limits unavailable for dashboard")
	}

	var warnings []prohelper.Warning
	if limits != nil {
		warnings = limits.Warnings
	}

	expiring, expErr := s.expiringModules(c, sessionID)
	if expErr != nil {
		log.Debug().Err(expErr).Msg("expiring modules unavailable for dashboard")
	}

	return c.Render(TemplateName, fiber.Map{
		"Title":           s.cfg.Title,
		"Nav":             nav,
		"Menu":            s.deps.Guard.Menu(c, navigation.SectionDashboard),
		"Snapshot":        snapshot,
		"Warnings":        warnings,
		"NeedsUpgrade":    state.Limits.NeedsUpgrade(),
		"ExpiringModules": expiring,
	}, handler.BaseLayout)
}

func (s *Service) expiringModules(c *fiber.Ctx, sessionID string) ([]prohelper.ActivatedModule, error) {
	token, ok := s.deps.SessionToken(sessionID)
	if !ok {
		return nil, prohelper.ErrNoToken
	}

	return s.deps.Client.ExpiringModules(c.Context(), token)
}
