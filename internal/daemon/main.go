// Package daemon is the composition root: it opens the database, builds the
// domain services and hands them to the web layer.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/storage"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/billing"
	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/db/dsn"
	"github.com/prohelper/prohelper-web/internal/db/models"
	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/permissions"
	"github.com/prohelper/prohelper-web/internal/prohelper"
	"github.com/prohelper/prohelper-web/internal/tokenstore"
	"github.com/prohelper/prohelper-web/internal/web"
	"github.com/prohelper/prohelper-web/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
	refresher  *permissions.Refresher
}

// Start starts the web service and the background refresher.
func (d *Daemon) Start() error {
	d.refresher.Start()
	defer d.refresher.Stop()

	if d.cfg.Webserver.MetricsPort > 0 {
		go serveMetrics(d.cfg.Webserver.MetricsPort)
	}

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// serveMetrics exposes prometheus metrics on a dedicated listener, away from
// the user-facing port.
func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Int("port", port).Msg("metrics listener started")

	if err := server.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("metrics listener stopped")
	}
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db := openDatabase(cfg)

	if err := db.AutoMigrate(
		&models.Setting{},
		&models.AuthToken{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	session.Init(newSessionStorage(cfg))

	dbBackend, err := tokenstore.NewDatabaseBackend(db, cfg.Webserver.TokenSecret, cfg.Webserver.TokenSalt)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token encryption")
	}

	tokens := tokenstore.New(
		dbBackend,
		tokenstore.NewStorageBackend(session.Store.Storage, cfg.Webserver.Session.ExpiryTime),
	)

	client := prohelper.New(cfg.API.BaseURL, cfg.API.Timeout)
	bus := events.New()

	tokenFunc := func(sessionID string) permissions.TokenFunc {
		return func(_ context.Context) (string, error) {
			token, ok := tokens.Token(sessionID)
			if !ok {
				return "", prohelper.ErrNoToken
			}

			return token, nil
		}
	}

	permRegistry := permissions.NewRegistry(bus, func(sessionID string) *permissions.Manager {
		return permissions.New(client, tokenFunc(sessionID), permissions.Options{
			Interface:         prohelper.Interface(cfg.API.Interface),
			MinReloadInterval: cfg.API.MinReloadInterval,
			LoadTimeout:       cfg.API.Timeout,
		})
	})

	refresher, err := permissions.NewRefresher(permRegistry, cfg.API.RefreshSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid permission refresh schedule")
	}

	billingRegistry := billing.NewRegistry(client, bus, func(sessionID string) billing.TokenFunc {
		return billing.TokenFunc(tokenFunc(sessionID))
	})

	webService := web.New(cfg, db, web.Collaborators{
		Client:      client,
		Bus:         bus,
		Tokens:      tokens,
		Permissions: permRegistry,
		Billing:     billingRegistry,
	})

	return &Daemon{
		cfg:        cfg,
		webService: webService,
		refresher:  refresher,
	}
}

func openDatabase(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "postgres":
		dialector = gormpostgres.Open(dsn.CreatePostgres(cfg))
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	return db
}

func newSessionStorage(cfg *config.Config) storage.Storage {
	switch cfg.Webserver.Session.Engine {
	case "postgres":
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.CreatePostgresURI(cfg),
			Table:         "sessions",
		})
	default:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	}
}
