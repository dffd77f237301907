package config

import (
	"time"

	"github.com/prohelper/prohelper-web/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
	// Engine selects the session storage backend: "mysql" or "postgres".
	Engine string
}

// API holds the connection settings for the ProHelper platform API.
type API struct {
	BaseURL string // base url of the platform API, e.g. https://api.prohelper.pro
	// Interface is the default audience tag used for permission loads (lk, admin, mobile).
	Interface string
	Timeout   time.Duration // per request timeout, default 15s
	// MinReloadInterval is the debounce window between permission reloads, default 5m.
	MinReloadInterval time.Duration
	// RefreshSchedule is the cron spec for the background permission refresh, default "@every 15m".
	RefreshSchedule string
}

// OIDC holds the enterprise SSO settings.
type OIDC struct {
	Enabled      bool
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	API       API
	OIDC      OIDC
}

// Webserver implement webserver settings.
type Webserver struct {
	BrowseStatic   bool    // enable static file browsing (for development purposes only)
	CacheEnabled   bool    // true = enable cache, false = disable cache
	CleanPath      bool    // use clean path middleware to allow multi slash requests
	DisableRecover bool    // disable recover middleware
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	MetricsPort    int     // listening port for the prometheus metrics endpoint, 0 = disabled
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	TokenSecret    string  // secret used to derive the token-at-rest encryption key
	TokenSalt      string  // salt for the token key derivation
	Session        Session // session settings
}
