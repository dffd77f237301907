// Package permissions holds the client-side authorization state of one
// session: a cached snapshot of the user's grants, roles, interfaces and
// active modules, loaded from the platform and consulted on every guarded
// request.
//
// All checks fail closed. Until a snapshot was loaded successfully every
// Can, HasRole, HasModule and CanAccessInterface call returns false.
package permissions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/prohelper/prohelper-web/internal/prohelper"
)

const (
	// DefaultMinReloadInterval is the debounce window between snapshot loads.
	DefaultMinReloadInterval = 5 * time.Minute
	// DefaultLoadTimeout bounds a single snapshot fetch.
	DefaultLoadTimeout = 15 * time.Second
)

// TokenFunc yields the API token of the session owning the manager.
type TokenFunc func(ctx context.Context) (string, error)

// Snapshot is one immutable authorization state. It is replaced as a whole
// on every load, readers never observe a partially updated state.
type Snapshot struct {
	UserID         uint64
	OrganizationID uint64
	Permissions    []string
	Roles          []string
	Interfaces     []string
	Modules        []string
	LoadedAt       time.Time
}

// Options configures a Manager.
type Options struct {
	// Interface is the audience tag sent with permission loads.
	Interface prohelper.Interface
	// MinReloadInterval is the debounce window, DefaultMinReloadInterval when zero.
	MinReloadInterval time.Duration
	// LoadTimeout bounds one fetch, DefaultLoadTimeout when zero.
	LoadTimeout time.Duration
}

// Manager caches the authorization snapshot of one session.
type Manager struct {
	client *prohelper.Client
	token  TokenFunc
	opts   Options

	group singleflight.Group

	mu       sync.RWMutex
	snap     *Snapshot
	lastLoad time.Time
	lastErr  error

	notReadyWarned sync.Map
}

// New creates a manager for a session.
func New(client *prohelper.Client, token TokenFunc, opts Options) *Manager {
	if opts.MinReloadInterval <= 0 {
		opts.MinReloadInterval = DefaultMinReloadInterval
	}

	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}

	if !opts.Interface.Valid() {
		opts.Interface = prohelper.InterfaceLK
	}

	return &Manager{
		client: client,
		token:  token,
		opts:   opts,
	}
}

// normalizeModule folds the two slug spellings the platform uses into one.
func normalizeModule(slug string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(slug)), "_", "-")
}

// Load ensures a reasonably fresh snapshot is present. Loads within the
// debounce window return the cached snapshot without a network round trip,
// and concurrent callers share a single in-flight fetch.
func (m *Manager) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	snap := m.snap
	fresh := snap != nil && time.Since(m.lastLoad) < m.opts.MinReloadInterval
	m.mu.RUnlock()

	if fresh {
		return snap, nil
	}

	return m.load(ctx)
}

// ForceLoad fetches a fresh snapshot regardless of the debounce window.
// Login and organization switches go through here.
func (m *Manager) ForceLoad(ctx context.Context) (*Snapshot, error) {
	return m.load(ctx)
}

func (m *Manager) load(ctx context.Context) (*Snapshot, error) {
	result, err, _ := m.group.Do("load", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(ctx, m.opts.LoadTimeout)
		defer cancel()

		snap, err := m.fetch(loadCtx)

		m.mu.Lock()
		m.lastErr = err
		if err == nil {
			m.snap = snap
			m.lastLoad = time.Now()
		}
		m.mu.Unlock()

		if err != nil {
			loadsTotal.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("permission snapshot load failed")

			return nil, err
		}

		loadsTotal.WithLabelValues("ok").Inc()

		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*Snapshot), nil
}

func (m *Manager) fetch(ctx context.Context) (*Snapshot, error) {
	token, err := m.token(ctx)
	if err != nil {
		return nil, err
	}

	data, err := m.client.Permissions(ctx, token, m.opts.Interface)
	if err != nil {
		return nil, err
	}

	modules := make([]string, 0, len(data.ActiveModules))
	for _, slug := range data.ActiveModules {
		modules = append(modules, normalizeModule(slug))
	}

	return &Snapshot{
		UserID:         data.UserID,
		OrganizationID: data.OrganizationID,
		Permissions:    data.PermissionsFlat,
		Roles:          data.Roles,
		Interfaces:     data.Interfaces,
		Modules:        modules,
		LoadedAt:       time.Now(),
	}, nil
}

// Snapshot returns the current snapshot, nil before the first successful load.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snap
}

// Ready reports whether a snapshot was loaded.
func (m *Manager) Ready() bool {
	return m.Snapshot() != nil
}

// LastError returns the error of the most recent load attempt.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastErr
}

// Clear drops the snapshot. Subsequent checks fail closed until the next load.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.snap = nil
	m.lastLoad = time.Time{}
	m.lastErr = nil
	m.mu.Unlock()
}

// notReady fails a check closed. The first check of each kind that runs
// before a snapshot exists logs a warning, so pages querying authorization
// too early show up in the logs without flooding them.
func (m *Manager) notReady(kind string) bool {
	if _, dup := m.notReadyWarned.LoadOrStore(kind, true); !dup {
		log.Warn().Str("check", kind).Msg("authorization check before snapshot load, denying")
	}

	return false
}

// Can reports whether the snapshot grants the permission. Grants may carry
// wildcards ("projects.*" covers "projects.edit").
func (m *Manager) Can(permission string) bool {
	snap := m.Snapshot()
	if snap == nil {
		return m.decide(m.notReady("permission"))
	}

	if permission == "" {
		return m.decide(false)
	}

	for _, granted := range snap.Permissions {
		if granted == permission || wildcard.Match(granted, permission) {
			return m.decide(true)
		}
	}

	return m.decide(false)
}

func (m *Manager) decide(allowed bool) bool {
	if allowed {
		checksTotal.WithLabelValues("allow").Inc()
	} else {
		checksTotal.WithLabelValues("deny").Inc()
	}

	return allowed
}

// HasRole reports whether the snapshot carries the role.
func (m *Manager) HasRole(role string) bool {
	snap := m.Snapshot()
	if snap == nil {
		return m.notReady("role")
	}

	if role == "" {
		return false
	}

	for _, r := range snap.Roles {
		if r == role {
			return true
		}
	}

	return false
}

// HasModule reports whether the module is active for the organization.
// Hyphen and underscore slug spellings are treated as the same module.
func (m *Manager) HasModule(slug string) bool {
	snap := m.Snapshot()
	if snap == nil {
		return m.notReady("module")
	}

	if slug == "" {
		return false
	}

	want := normalizeModule(slug)
	for _, active := range snap.Modules {
		if active == want {
			return true
		}
	}

	return false
}

// CanAccessInterface reports whether the user may use the given surface.
func (m *Manager) CanAccessInterface(iface prohelper.Interface) bool {
	snap := m.Snapshot()
	if snap == nil {
		return m.notReady("interface")
	}

	for _, allowed := range snap.Interfaces {
		if allowed == string(iface) {
			return true
		}
	}

	return false
}

// AccessOptions is a composite access criterion. Empty fields do not
// participate in the decision; with no criteria at all the access is granted.
type AccessOptions struct {
	Permission string
	Role       string
	Module     string
	Interface  prohelper.Interface
	// RequireAny switches the combination from all-must-hold to any-suffices.
	RequireAny bool
}

// CanAccess evaluates a composite criterion against the snapshot.
func (m *Manager) CanAccess(opts AccessOptions) bool {
	var results []bool

	if opts.Permission != "" {
		results = append(results, m.Can(opts.Permission))
	}

	if opts.Role != "" {
		results = append(results, m.HasRole(opts.Role))
	}

	if opts.Module != "" {
		results = append(results, m.HasModule(opts.Module))
	}

	if opts.Interface != "" {
		results = append(results, m.CanAccessInterface(opts.Interface))
	}

	if len(results) == 0 {
		return true
	}

	if opts.RequireAny {
		for _, ok := range results {
			if ok {
				return true
			}
		}

		return false
	}

	for _, ok := range results {
		if !ok {
			return false
		}
	}

	return true
}

// CheckPermission asks the platform directly, bypassing the snapshot. Used
// for sensitive operations where a stale cache is not acceptable.
func (m *Manager) CheckPermission(ctx context.Context, permission string, checkContext map[string]any) (bool, error) {
	token, err := m.token(ctx)
	if err != nil {
		return false, err
	}

	result, err := m.client.CheckPermission(ctx, token, prohelper.CheckRequest{
		Permission: permission,
		Context:    checkContext,
		Interface:  string(m.opts.Interface),
	})
	if err != nil {
		return false, err
	}

	return result.HasPermission, nil
}
