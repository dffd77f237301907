package permissions

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/prohelper/prohelper-web/internal/events"
)

// Factory builds a manager for a session.
type Factory func(sessionID string) *Manager

// Registry holds one Manager per active session and keeps them in sync with
// the session lifecycle events on the bus: a login or organization switch
// reloads the snapshot, a logout drops it.
type Registry struct {
	factory Factory

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry creates a registry and wires it to the bus.
func NewRegistry(bus *events.Bus, factory Factory) *Registry {
	r := &Registry{
		factory:  factory,
		managers: make(map[string]*Manager),
	}

	bus.Subscribe(events.TopicUserLogin, r.reload)
	bus.Subscribe(events.TopicOrganizationChanged, r.reload)
	bus.Subscribe(events.TopicUserLogout, func(ev events.Event) {
		r.Drop(ev.SessionID)
	})

	return r
}

// Get returns the manager of the session, creating it on first use.
func (r *Registry) Get(sessionID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	manager, ok := r.managers[sessionID]
	if !ok {
		manager = r.factory(sessionID)
		r.managers[sessionID] = manager
	}

	return manager
}

// Peek returns the manager of the session without creating one.
func (r *Registry) Peek(sessionID string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	manager, ok := r.managers[sessionID]

	return manager, ok
}

// Drop clears and removes the manager of the session.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	manager, ok := r.managers[sessionID]
	delete(r.managers, sessionID)
	r.mu.Unlock()

	if ok {
		manager.Clear()
	}
}

// ForEach calls fn for every registered manager.
func (r *Registry) ForEach(fn func(sessionID string, m *Manager)) {
	r.mu.Lock()
	snapshot := make(map[string]*Manager, len(r.managers))
	for id, m := range r.managers {
		snapshot[id] = m
	}
	r.mu.Unlock()

	for id, m := range snapshot {
		fn(id, m)
	}
}

func (r *Registry) reload(ev events.Event) {
	if ev.SessionID == "" {
		return
	}

	manager := r.Get(ev.SessionID)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultLoadTimeout)
	defer cancel()

	if _, err := manager.ForceLoad(ctx); err != nil {
		log.Warn().Err(err).
			Str("session_id", ev.SessionID).
			Str("topic", string(ev.Topic)).
			Msg("permission reload after session event failed")
	}
}
