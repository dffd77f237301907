// Package balance renders the organization balance and transaction history.
package balance

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/prohelper"
	"github.com/prohelper/prohelper-web/internal/web/guard"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/navigation"
)

const (
	// Path is the path to the balance page.
	Path = handler.RootPath + "billing/balance"

	// TemplateName is the name of the balance template.
	TemplateName = "billing/balance"
)

// Service is the balance handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the balance handler.
var Handler = Service{}

// Init initializes the balance handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, deps.Guard.RequirePermission("billing.view"), s.Get)
		router.Post("/refresh", deps.Guard.RequirePermission("billing.view"), s.Refresh)
	})

	return nil
}

// Get renders the balance with the transaction history.
func (s *Service) Get(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)

	nav := navigation.NewContext("Balance", navigation.SectionBilling, "balance").
		AddBreadcrumb("Home", "/dashboard", false).
		AddBreadcrumb("Balance", Path, true)

	state := s.deps.Billing.Get(sessionID)

	balance, err := state.Balance.Refresh(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh balance")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load balance")
	}

	transactions, err := s.transactions(c, sessionID)
	if err != nil {
		// history is secondary, render the page with the balance alone
		log.Debug().Err(err).Msg("transaction history unavailable")
	}

	billingInfo, err := s.billingInfo(c, sessionID)
	if err != nil {
		log.Debug().Err(err).Msg("billing summary unavailable")
	}

	return c.Render(TemplateName, fiber.Map{
		"Title":        s.cfg.Title,
		"Nav":          nav,
		"Menu":         s.deps.Guard.Menu(c, navigation.SectionBilling),
		"Balance":      balance,
		"Transactions": transactions,
		"BillingInfo":  billingInfo,
		"ErrorMessage": c.Query("error"),
	}, handler.BaseLayout)
}

// Refresh forces a balance refetch and returns to the page.
func (s *Service) Refresh(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)

	state := s.deps.Billing.Get(sessionID)

	if _, err := state.Balance.Refresh(c.Context()); err != nil {
		log.Warn().Err(err).Msg("manual balance refresh failed")

		return c.Redirect(Path + "?error=Refresh+failed")
	}

	return c.Redirect(Path)
}

func (s *Service) transactions(c *fiber.Ctx, sessionID string) ([]prohelper.Transaction, error) {
	token, ok := s.deps.SessionToken(sessionID)
	if !ok {
		return nil, prohelper.ErrNoToken
	}

	return s.deps.Client.Transactions(c.Context(), token)
}

func (s *Service) billingInfo(c *fiber.Ctx, sessionID string) (*prohelper.BillingInfo, error) {
	token, ok := s.deps.SessionToken(sessionID)
	if !ok {
		return nil, prohelper.ErrNoToken
	}

	return s.deps.Client.BillingInfo(c.Context(), token)
}
