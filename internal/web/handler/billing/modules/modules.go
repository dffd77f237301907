// Package modules renders the module catalog and drives activations.
package modules

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/prohelper"
	"github.com/prohelper/prohelper-web/internal/web/guard"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/navigation"
)

const (
	// Path is the path to the modules page.
	Path = handler.RootPath + "billing/modules"

	// TemplateName is the name of the modules template.
	TemplateName = "billing/modules"
)

// Service is the modules handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the modules handler.
var Handler = Service{}

// Init initializes the modules handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, deps.Guard.RequirePermission("billing.view"), s.Get)
		router.Post("/:slug/activate", deps.Guard.RequirePermission("billing.manage"), s.Activate)
		router.Post("/:slug/deactivate", deps.Guard.RequirePermission("billing.manage"), s.Deactivate)
		router.Post("/:slug/renew", deps.Guard.RequirePermission("billing.manage"), s.Renew)
	})

	return nil
}

// Get renders the module catalog grouped by category.
func (s *Service) Get(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)

	nav := navigation.NewContext("Modules", navigation.SectionBilling, "modules").
		AddBreadcrumb("Home", "/dashboard", false).
		AddBreadcrumb("Modules", Path, true)

	state := s.deps.Billing.Get(sessionID)

	overview, err := state.Modules.Fetch(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch module overview")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load modules")
	}

	// stable category order as the catalog delivered it
	categories := make([]string, 0)
	grouped := make(map[string][]prohelper.Module)

	// the activation records decide the state, the catalog flag alone is stale
	activeState := make(map[string]bool, len(overview.Catalog))

	for _, module := range overview.Catalog {
		if _, seen := grouped[module.Category]; !seen {
			categories = append(categories, module.Category)
		}

		grouped[module.Category] = append(grouped[module.Category], module)
		activeState[module.Slug] = state.Modules.IsActive(module.Slug, overview.Catalog)
	}

	return c.Render(TemplateName, fiber.Map{
		"Title":         s.cfg.Title,
		"Nav":           nav,
		"Menu":          s.deps.Guard.Menu(c, navigation.SectionBilling),
		"Categories":    categories,
		"Grouped":       grouped,
		"ActiveState":   activeState,
		"Active":        overview.Active,
		"Expiring":      overview.Expiring,
		"Balance":       overview.Balance,
		"Info":          overview.Info,
		"WantedModule":  c.Query("module"),
		"CanManage":     s.deps.Guard.Can(c, "billing.manage"),
		"ErrorMessage":  c.Query("error"),
		"NoticeMessage": c.Query("notice"),
	}, handler.BaseLayout)
}

// Activate activates a module and requests a balance refresh.
func (s *Service) Activate(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)
	slug := c.Params("slug")

	state := s.deps.Billing.Get(sessionID)

	result, err := state.Modules.Activate(c.Context(), slug)
	if err != nil {
		log.Error().Err(err).Str("module", slug).Msg("module activation failed")

		return c.Redirect(Path + "?error=Activation+failed")
	}

	if result.InsufficientFunds {
		return c.Redirect("/billing/balance?error=Insufficient+funds")
	}

	s.deps.Bus.Publish(events.Event{
		Topic:     events.TopicBalanceRefreshRequested,
		SessionID: sessionID,
	})

	log.Info().Str("module", slug).Msg("module activated")

	return c.Redirect(Path + "?notice=Module+activated")
}

// Deactivate deactivates a module.
func (s *Service) Deactivate(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)
	slug := c.Params("slug")

	state := s.deps.Billing.Get(sessionID)

	if err := state.Modules.Deactivate(c.Context(), slug); err != nil {
		log.Error().Err(err).Str("module", slug).Msg("module deactivation failed")

		return c.Redirect(Path + "?error=Deactivation+failed")
	}

	return c.Redirect(Path + "?notice=Module+deactivated")
}

// Renew renews a module's paid period and requests a balance refresh.
func (s *Service) Renew(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)
	slug := c.Params("slug")

	state := s.deps.Billing.Get(sessionID)

	result, err := state.Modules.Renew(c.Context(), slug)
	if err != nil {
		log.Error().Err(err).Str("module", slug).Msg("module renewal failed")

		return c.Redirect(Path + "?error=Renewal+failed")
	}

	if result.InsufficientFunds {
		return c.Redirect("/billing/balance?error=Insufficient+funds")
	}

	s.deps.Bus.Publish(events.Event{
		Topic:     events.TopicBalanceRefreshRequested,
		SessionID: sessionID,
	})

	return c.Redirect(Path + "?notice=Module+renewed")
}
