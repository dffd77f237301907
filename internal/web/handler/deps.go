package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/prohelper/prohelper-web/internal/billing"
	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/permissions"
	"github.com/prohelper/prohelper-web/internal/prohelper"
	"github.com/prohelper/prohelper-web/internal/tokenstore"
	"github.com/prohelper/prohelper-web/internal/web/guard"
)

// Deps bundles the shared collaborators the page handlers are initialized with.
type Deps struct {
	Client      *prohelper.Client
	Bus         *events.Bus
	Tokens      *tokenstore.Store
	Guard       *guard.Guard
	Permissions *permissions.Registry
	Billing     *billing.Registry
}

// TokenFunc yields the token resolver of a session, backed by the token store.
func (d *Deps) TokenFunc(sessionID string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		token, ok := d.Tokens.Token(sessionID)
		if !ok {
			return "", prohelper.ErrNoToken
		}

		return token, nil
	}
}

// SessionToken resolves the token of a session directly.
func (d *Deps) SessionToken(sessionID string) (string, bool) {
	return d.Tokens.Token(sessionID)
}

// SaveToken persists the token in every backend, including the cookie of the
// current request. The cookie backend only exists per request, so it is bound
// here instead of in the store's standing backend list.
func (d *Deps) SaveToken(c *fiber.Ctx, sessionID, token string) {
	d.Tokens.With(tokenstore.NewCookieBackend(CookieJar(c))).SaveToken(sessionID, token)
}

// CookieJar adapts a fiber context to the token store's cookie surface.
func CookieJar(c *fiber.Ctx) tokenstore.CookieJar {
	return fiberJar{c: c}
}

type fiberJar struct {
	c *fiber.Ctx
}

func (j fiberJar) Cookie(name string) string {
	return j.c.Cookies(name)
}

func (j fiberJar) SetCookie(name, value string, maxAge time.Duration) {
	j.c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (j fiberJar) ClearCookie(name string) {
	j.c.ClearCookie(name)
}
