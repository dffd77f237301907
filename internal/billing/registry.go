package billing

import (
	"sync"

	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/prohelper"
)

// SessionState bundles the billing services of one session.
type SessionState struct {
	Limits  *Limits
	Modules *Modules
	Balance *BalanceCache
}

// TokenLookup resolves the token func of a session.
type TokenLookup func(sessionID string) TokenFunc

// Registry holds the billing state per active session and drops it on logout.
type Registry struct {
	client *prohelper.Client
	bus    *events.Bus
	token  TokenLookup

	mu       sync.Mutex
	sessions map[string]*SessionState
}

// NewRegistry creates a registry wired to the bus.
func NewRegistry(client *prohelper.Client, bus *events.Bus, token TokenLookup) *Registry {
	r := &Registry{
		client:   client,
		bus:      bus,
		token:    token,
		sessions: make(map[string]*SessionState),
	}

	bus.Subscribe(events.TopicUserLogout, func(ev events.Event) {
		r.Drop(ev.SessionID)
	})

	// an organization switch invalidates every cached billing figure
	bus.Subscribe(events.TopicOrganizationChanged, func(ev events.Event) {
		r.Drop(ev.SessionID)
	})

	return r
}

// Get returns the billing state of the session, creating it on first use.
func (r *Registry) Get(sessionID string) *SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		tokenFn := r.token(sessionID)

		state = &SessionState{
			Limits:  NewLimits(r.client, tokenFn),
			Modules: NewModules(r.client, tokenFn),
			Balance: NewBalanceCache(r.client, tokenFn, r.bus, sessionID),
		}
		r.sessions[sessionID] = state
	}

	return state
}

// Limits returns the limits cache of the session.
func (r *Registry) Limits(sessionID string) *Limits {
	return r.Get(sessionID).Limits
}

// Drop removes the billing state of the session.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	state, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		state.Balance.Close()
	}
}
