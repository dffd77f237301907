// Package web assembles the fiber application: middleware, template engine
// and every page handler.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/billing"
	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/events"
	fiberlogger "github.com/prohelper/prohelper-web/internal/logger/adapter/fiber"
	"github.com/prohelper/prohelper-web/internal/permissions"
	"github.com/prohelper/prohelper-web/internal/prohelper"
	"github.com/prohelper/prohelper-web/internal/tokenstore"
	"github.com/prohelper/prohelper-web/internal/web/guard"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	adminuser "github.com/prohelper/prohelper-web/internal/web/handler/admin/user"
	oidchandler "github.com/prohelper/prohelper-web/internal/web/handler/auth/oidc"
	"github.com/prohelper/prohelper-web/internal/web/handler/billing/balance"
	"github.com/prohelper/prohelper-web/internal/web/handler/billing/limits"
	"github.com/prohelper/prohelper-web/internal/web/handler/billing/modules"
	"github.com/prohelper/prohelper-web/internal/web/handler/dashboard"
	"github.com/prohelper/prohelper-web/internal/web/handler/holding"
	"github.com/prohelper/prohelper-web/internal/web/handler/landing"
	"github.com/prohelper/prohelper-web/internal/web/handler/login"
	"github.com/prohelper/prohelper-web/internal/web/handler/logout"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	tokens       *tokenstore.Store
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	s.alive.Store(true)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		if err := s.App.Shutdown(); err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// Collaborators are the domain services the web layer is assembled from.
type Collaborators struct {
	Client      *prohelper.Client
	Bus         *events.Bus
	Tokens      *tokenstore.Store
	Permissions *permissions.Registry
	Billing     *billing.Registry
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB, collab Collaborators) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in dev mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("dev mode enabled: using local filesystem for templates")
	}

	templateEngine.AddFunc("percent", func(v float64) string {
		return fmt.Sprintf("%.0f%%", v)
	})
	templateEngine.AddFunc("money", func(amount float64, currency string) string {
		return fmt.Sprintf("%.2f %s", amount, currency)
	})

	app := fiber.New(
		fiber.Config{
			ReadBufferSize:    8192,
			AppName:           cfg.Title,
			CaseSensitive:     true,
			Prefork:           false,
			Immutable:         true,
			Views:             templateEngine,
			PassLocalsToViews: true,
		},
	)

	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: "/checkalive",
	}))

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
				Browse:     cfg.Webserver.BrowseStatic,
			},
		),
	)

	service := &Service{
		cfg:    cfg,
		App:    app,
		db:     db,
		tokens: collab.Tokens,
	}

	app.Get("/checkalive", func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})

	app.Use(service.AuthMiddleware)

	g := guard.New(collab.Permissions, func(sessionID string) *billing.Limits {
		return collab.Billing.Limits(sessionID)
	})

	app.Use(g.AddLocals())

	deps := &handler.Deps{
		Client:      collab.Client,
		Bus:         collab.Bus,
		Tokens:      collab.Tokens,
		Guard:       g,
		Permissions: collab.Permissions,
		Billing:     collab.Billing,
	}

	initHandlers(app, cfg, db, deps)

	return service
}

func initHandlers(app *fiber.App, cfg *config.Config, db *gorm.DB, deps *handler.Deps) {
	for name, init := range map[string]func() error{
		"landing":         func() error { return landing.Handler.Init(app, cfg, db, deps) },
		"login":           func() error { return login.Handler.Init(app, cfg, db, deps) },
		"oidc":            func() error { return oidchandler.Handler.Init(app, cfg, db, deps) },
		"logout":          func() error { return logout.Handler.Init(app, cfg, db, deps) },
		"dashboard":       func() error { return dashboard.Handler.Init(app, cfg, db, deps) },
		"billing-modules": func() error { return modules.Handler.Init(app, cfg, db, deps) },
		"billing-limits":  func() error { return limits.Handler.Init(app, cfg, db, deps) },
		"billing-balance": func() error { return balance.Handler.Init(app, cfg, db, deps) },
		"admin-user":      func() error { return adminuser.Handler.Init(app, cfg, db, deps) },
		"holding":         func() error { return holding.Handler.Init(app, cfg, db, deps) },
	} {
		if err := init(); err != nil {
			log.Fatal().Err(err).Str("handler", name).Msg("failed to initialize handler")
		}
	}
}
