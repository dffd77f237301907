// Package holding renders the organization panel of a holding and handles
// switching the active organization.
package holding

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/web/guard"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/navigation"
	"github.com/prohelper/prohelper-web/internal/web/session"
)

const (
	// Path is the path to the holding panel.
	Path = handler.RootPath + "holding"

	// TemplateName is the name of the holding template.
	TemplateName = "holding/holding"
)

// Service is the holding handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the holding handler.
var Handler = Service{}

// Init initializes the holding handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, deps.Guard.RequirePermission("organizations.view"), s.Get)
		router.Post("/switch/:id", deps.Guard.RequirePermission("organizations.switch"), s.Switch)
	})

	return nil
}

// Get renders the organizations of the holding.
func (s *Service) Get(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)

	nav := navigation.NewContext("Organizations", navigation.SectionHolding, "holding").
		AddBreadcrumb("Home", "/dashboard", false).
		AddBreadcrumb("Organizations", Path, true)

	token, ok := s.deps.SessionToken(sessionID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	organizations, err := s.deps.Client.Organizations(c.Context(), token)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch organizations")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load organizations")
	}

	activeID, _ := c.Locals("organization_id").(uint64)

	return c.Render(TemplateName, fiber.Map{
		"Title":         s.cfg.Title,
		"Nav":           nav,
		"Menu":          s.deps.Guard.Menu(c, navigation.SectionHolding),
		"Organizations": organizations,
		"ActiveID":      activeID,
	}, handler.BaseLayout)
}

// Switch changes the active organization of the session. The platform
// re-scopes the token server side, the client only has to drop its caches.
func (s *Service) Switch(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)

	orgID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || orgID == 0 {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid organization")
	}

	token, ok := s.deps.SessionToken(sessionID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	if err = s.deps.Client.SwitchOrganization(c.Context(), token, orgID); err != nil {
		log.Error().Err(err).Uint64("organization_id", orgID).Msg("organization switch failed")

		return c.Status(fiber.StatusInternalServerError).SendString("Switch failed")
	}

	// persist the new scope in the session
	sessData := new(session.Data)
	if readErr := sessData.Read(sessionID); readErr == nil {
		sessData.OrganizationID = orgID

		if writeErr := sessData.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); writeErr != nil {
			log.Warn().Err(writeErr).Msg("failed to persist organization switch in session")
		}
	}

	s.deps.Bus.Publish(events.Event{
		Topic:          events.TopicOrganizationChanged,
		SessionID:      sessionID,
		OrganizationID: orgID,
	})

	log.Info().Uint64("organization_id", orgID).Msg("active organization switched")

	return c.Redirect("/dashboard")
}
