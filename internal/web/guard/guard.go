// Package guard protects routes and templates with the cached authorization
// snapshot of the session.
//
// A failing permission or role check answers 403. A failing module check
// redirects to the billing page instead, an inactive module is a sales
// situation, not an intrusion. Requests without a session redirect to the
// login page with the original URL preserved.
package guard

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prohelper/prohelper-web/internal/billing"
	"github.com/prohelper/prohelper-web/internal/permissions"
	"github.com/prohelper/prohelper-web/internal/web/navigation"
)

const (
	// LoginPath is where unauthenticated requests are sent.
	LoginPath = "/login"
	// ModulesPath is where requests gated by an inactive module are sent.
	ModulesPath = "/billing/modules"
	// SessionIDLocal is the fiber.Locals key of the session ID.
	SessionIDLocal = "session_id"
)

// Guard resolves per-session managers for route protection.
type Guard struct {
	registry *permissions.Registry
	limits   func(sessionID string) *billing.Limits
}

// New creates a guard over the registry. The limits lookup may be nil when
// no subscription context is wanted in templates.
func New(registry *permissions.Registry, limits func(sessionID string) *billing.Limits) *Guard {
	return &Guard{
		registry: registry,
		limits:   limits,
	}
}

// SessionID extracts the session ID the auth middleware stored on the context.
func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(SessionIDLocal).(string)

	return id
}

// redirectToLogin sends the request to the login page carrying the original
// URL, so a successful login lands where the user wanted to go.
func redirectToLogin(c *fiber.Ctx) error {
	return c.Redirect(LoginPath + "?return_to=" + url.QueryEscape(c.OriginalURL()))
}

// RequireAccess creates middleware enforcing a composite access criterion.
func (g *Guard) RequireAccess(opts permissions.AccessOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := SessionID(c)
		if sessionID == "" {
			return redirectToLogin(c)
		}

		manager := g.registry.Get(sessionID)

		// make sure a snapshot exists; stale-but-present beats empty
		if _, err := manager.Load(c.Context()); err != nil && !manager.Ready() {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("permission load failed, denying")

			return c.Status(fiber.StatusForbidden).Render("errors/forbidden", fiber.Map{
				"Title": "Access denied",
			})
		}

		if manager.CanAccess(opts) {
			return c.Next()
		}

		// module gate: steer to the billing page rather than a 403
		if opts.Module != "" && !manager.HasModule(opts.Module) {
			return c.Redirect(ModulesPath + "?module=" + url.QueryEscape(opts.Module))
		}

		log.Warn().
			Str("session_id", sessionID).
			Str("permission", opts.Permission).
			Str("role", opts.Role).
			Msg("access denied")

		return c.Status(fiber.StatusForbidden).Render("errors/forbidden", fiber.Map{
			"Title": "Access denied",
		})
	}
}

// RequirePermission is shorthand for a single permission criterion.
func (g *Guard) RequirePermission(permission string) fiber.Handler {
	return g.RequireAccess(permissions.AccessOptions{Permission: permission})
}

// RequireRole is shorthand for a single role criterion.
func (g *Guard) RequireRole(role string) fiber.Handler {
	return g.RequireAccess(permissions.AccessOptions{Role: role})
}

// RequireModule is shorthand for a single module criterion.
func (g *Guard) RequireModule(slug string) fiber.Handler {
	return g.RequireAccess(permissions.AccessOptions{Module: slug})
}

// AddLocals exposes the session's authorization state to templates:
// "can", "hasRole", "hasModule" callables plus "needsUpgrade".
func (g *Guard) AddLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := SessionID(c)
		if sessionID == "" {
			return c.Next()
		}

		manager, ok := g.registry.Peek(sessionID)
		if !ok {
			return c.Next()
		}

		c.Locals("can", func(permission string) bool {
			return manager.Can(permission)
		})
		c.Locals("hasRole", func(role string) bool {
			return manager.HasRole(role)
		})
		c.Locals("hasModule", func(slug string) bool {
			return manager.HasModule(slug)
		})

		if g.limits != nil {
			c.Locals("needsUpgrade", g.limits(sessionID).NeedsUpgrade())
		}

		return c.Next()
	}
}

// sectionAccess maps a menu section to the criterion its pages are gated by.
func sectionAccess(section string) permissions.AccessOptions {
	switch section {
	case navigation.SectionBilling:
		return permissions.AccessOptions{Permission: "billing.view"}
	case navigation.SectionAdmin:
		return permissions.AccessOptions{Permission: "users.view"}
	case navigation.SectionHolding:
		return permissions.AccessOptions{Permission: "organizations.view"}
	default:
		return permissions.AccessOptions{}
	}
}

// Menu builds the main menu for the session. Sections the snapshot does not
// allow come back disabled with an upgrade hint, the pages stay visible.
func (g *Guard) Menu(c *fiber.Ctx, activeSection string) []navigation.MenuItem {
	sessionID := SessionID(c)
	if sessionID == "" {
		return navigation.Menu(activeSection, func(string) bool { return false })
	}

	manager, ok := g.registry.Peek(sessionID)
	if !ok {
		return navigation.Menu(activeSection, func(string) bool { return false })
	}

	return navigation.Menu(activeSection, func(section string) bool {
		return manager.CanAccess(sectionAccess(section))
	})
}

// Can answers a template-level permission question from a handler.
func (g *Guard) Can(c *fiber.Ctx, permission string) bool {
	sessionID := SessionID(c)
	if sessionID == "" {
		return false
	}

	manager, ok := g.registry.Peek(sessionID)

	return ok && manager.Can(permission)
}
