// Package landing renders the public start page.
package landing

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/web/handler"
)

// Path is the path to the landing page.
const Path = handler.RootPath

// TemplateName is the name of the landing template.
const TemplateName = "landing"

// Service is the landing handler service.
type Service struct {
	handler.Service
	cfg *config.Config
}

// Handler is the landing handler.
var Handler = Service{}

// Init initializes the landing handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg

	app.Get(Path, s.Get)

	return nil
}

// Get renders the landing page. Authenticated visitors go straight to the
// dashboard, the auth middleware takes care of that.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.Render(TemplateName, fiber.Map{
		"Title":        s.cfg.Title,
		"oidc_enabled": s.cfg.OIDC.Enabled,
	})
}
