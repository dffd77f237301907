// Package user provides the organization member management pages.
package user

import (
	"strings"

	"github.com/go-playground/validator/v10"
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
	// Path is the base path for user management.
	Path = handler.RootPath + "admin/users"

	// TemplateList is the template for listing users.
	TemplateList = "admin/user/list"
	// TemplateForm is the template for inviting a user.
	TemplateForm = "admin/user/form"
)

// InviteForm is the invitation form payload.
type InviteForm struct {
	Email     string `form:"email" validate:"required,email"`
	FirstName string `form:"first_name" validate:"max=100"`
	LastName  string `form:"last_name" validate:"max=100"`
	Role      string `form:"role" validate:"required"`
}

// Service provides the member management handlers.
type Service struct {
	handler.Service
	cfg       *config.Config
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) error {
	if app == nil || cfg == nil || db == nil || deps == nil {
		return errors.New("app, cfg, db or deps is nil")
	}

	s.cfg = cfg
	s.deps = deps
	s.validator = validator.New()

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, deps.Guard.RequirePermission("users.view"), s.List)
		router.Get("/invite", deps.Guard.RequirePermission("users.manage"), s.InviteGet)
		router.Post("/invite", deps.Guard.RequirePermission("users.manage"), s.InvitePost)
	})

	return nil
}

// List renders the member list of the active organization.
func (s *Service) List(c *fiber.Ctx) error {
	sessionID := guard.SessionID(c)

	nav := navigation.NewContext("Users", navigation.SectionAdmin, "users").
		AddBreadcrumb("Home", "/dashboard", false).
		AddBreadcrumb("Users", Path, true)

	token, ok := s.deps.SessionToken(sessionID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	users, err := s.deps.Client.OrganizationUsers(c.Context(), token)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch organization users")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load users")
	}

	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	if search != "" {
		users = filterUsers(users, search)
	}

	return c.Render(TemplateList, fiber.Map{
		"Title":     s.cfg.Title,
		"Nav":       nav,
		"Menu":      s.deps.Guard.Menu(c, navigation.SectionAdmin),
		"Users":     users,
		"Search":    c.Query("search"),
		"CanManage": s.deps.Guard.Can(c, "users.manage"),
	}, handler.BaseLayout)
}

func filterUsers(users []prohelper.User, search string) []prohelper.User {
	filtered := make([]prohelper.User, 0, len(users))

	for _, u := range users {
		haystack := strings.ToLower(u.Email + " " + u.FirstName + " " + u.LastName)
		if strings.Contains(haystack, search) {
			filtered = append(filtered, u)
		}
	}

	return filtered
}

// InviteGet renders the invitation form.
func (s *Service) InviteGet(c *fiber.Ctx) error {
	nav := navigation.NewContext("Invite user", navigation.SectionAdmin, "users").
		AddBreadcrumb("Home", "/dashboard", false).
		AddBreadcrumb("Users", Path, false).
		AddBreadcrumb("Invite", Path+"/invite", true)

	return c.Render(TemplateForm, fiber.Map{
		"Title": s.cfg.Title,
		"Nav":   nav,
		"Menu":  s.deps.Guard.Menu(c, navigation.SectionAdmin),
	}, handler.BaseLayout)
}

// InvitePost validates the form and sends the invitation.
func (s *Service) InvitePost(c *fiber.Ctx) error {
	payload := new(InviteForm)
	if err := c.BodyParser(payload); err != nil {
		return err
	}

	if err := s.validator.Struct(payload); err != nil {
		fieldErrors := make(map[string]string)

		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, fieldErr := range validationErrs {
				fieldErrors[fieldErr.Field()] = fieldErr.Tag()
			}
		}

		return c.Render(TemplateForm, fiber.Map{
			"Title":       s.cfg.Title,
			"Menu":        s.deps.Guard.Menu(c, navigation.SectionAdmin),
			"Form":        payload,
			"FieldErrors": fieldErrors,
			"error":       "Please correct the highlighted fields",
		}, handler.BaseLayout)
	}

	sessionID := guard.SessionID(c)

	token, ok := s.deps.SessionToken(sessionID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	err := s.deps.Client.InviteUser(c.Context(), token, prohelper.InviteRequest{
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Roles:     []string{payload.Role},
	})
	if err != nil {
		var validationErr *prohelper.ValidationError
		if errors.As(err, &validationErr) {
			return c.Render(TemplateForm, fiber.Map{
				"Title":        s.cfg.Title,
				"Menu":         s.deps.Guard.Menu(c, navigation.SectionAdmin),
				"Form":         payload,
				"ServerErrors": validationErr.Fields,
				"error":        validationErr.Message,
			}, handler.BaseLayout)
		}

		log.Error().Err(err).Msg("failed to invite user")

		return c.Render(TemplateForm, fiber.Map{
			"Title": s.cfg.Title,
			"Menu":  s.deps.Guard.Menu(c, navigation.SectionAdmin),
			"Form":  payload,
			"error": "Invitation failed, try again later",
		}, handler.BaseLayout)
	}

	log.Info().Str("email", payload.Email).Msg("user invited")

	return c.Redirect(Path)
}
