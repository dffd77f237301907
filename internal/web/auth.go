package web

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prohelper/prohelper-web/internal/tokenstore"
	"github.com/prohelper/prohelper-web/internal/web/guard"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	"github.com/prohelper/prohelper-web/internal/web/handler/login"
	"github.com/prohelper/prohelper-web/internal/web/session"
)

// publicPrefixes are reachable without a session.
var publicPrefixes = []string{
	"/static",
	"/checkalive",
	login.Path,
	"/auth/oidc",
	"/",
}

func isPublic(path string) bool {
	for _, prefix := range publicPrefixes {
		if prefix == "/" {
			if path == "/" {
				return true
			}

			continue
		}

		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// AuthMiddleware checks the session and exposes the session ID to the
// handlers behind it.
func (s *Service) AuthMiddleware(c *fiber.Ctx) error {
	originalURL := strings.ToLower(c.OriginalURL())

	sessionID := c.Cookies("session")

	isLoginPage := strings.HasPrefix(originalURL, login.Path)

	// no session cookie, only public pages are reachable
	if sessionID == "" {
		if isPublic(c.Path()) {
			return c.Next()
		}

		return c.Redirect(login.Path + "?return_to=" + url.QueryEscape(c.OriginalURL()))
	}

	sessData := new(session.Data)
	_ = sessData.Read(sessionID)

	if !sessData.Valid() {
		if isPublic(c.Path()) {
			return c.Next()
		}

		return c.Redirect(login.Path + "?return_to=" + url.QueryEscape(c.OriginalURL()))
	}

	// authenticated users do not see the login page again
	if isLoginPage {
		return c.Redirect("/dashboard")
	}

	c.Locals(guard.SessionIDLocal, sessionID)
	c.Locals("user", sessData.User)
	c.Locals("organization_id", sessData.OrganizationID)

	s.healCookieToken(c, sessionID)

	return c.Next()
}

// healCookieToken re-saves a token that was only recoverable from the
// browser cookie into the durable backends, so the cookie stops being the
// single copy.
func (s *Service) healCookieToken(c *fiber.Ctx, sessionID string) {
	if s.tokens == nil {
		return
	}

	store := s.tokens.With(tokenstore.NewCookieBackend(handler.CookieJar(c)))

	token, source, ok := store.TokenWithSource(sessionID)
	if !ok || source != "cookie" {
		return
	}

	log.Info().Str("session_id", sessionID).Msg("restoring token from cookie into durable storage")
	s.tokens.SaveToken(sessionID, token)
}
