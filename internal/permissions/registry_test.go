package permissions

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/prohelper"
)

func newTestRegistry(t *testing.T, bus *events.Bus) (*Registry, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)

		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {"user_id": 1, "organization_id": 1, "permissions_flat": ["projects.view"]}
		}`))
	}))
	t.Cleanup(server.Close)

	client := prohelper.New(server.URL, time.Second)

	registry := NewRegistry(bus, func(string) *Manager {
		return New(client, staticToken("tok"), Options{MinReloadInterval: time.Hour})
	})

	return registry, &calls
}

func TestRegistryGetIsPerSession(t *testing.T) {
	registry, _ := newTestRegistry(t, events.New())

	first := registry.Get("session-a")
	assert.Same(t, first, registry.Get("session-a"))
	assert.NotSame(t, first, registry.Get("session-b"))
}

func TestRegistryLoginEventLoadsSnapshot(t *testing.T) {
	bus := events.New()
	registry, calls := newTestRegistry(t, bus)

	bus.Publish(events.Event{Topic: events.TopicUserLogin, SessionID: "session-a"})
	bus.Wait()

	manager, ok := registry.Peek("session-a")
	require.True(t, ok)
	assert.True(t, manager.Ready())
	assert.Equal(t, int64(1), calls.Load())
}

func TestRegistryOrganizationChangeBypassesDebounce(t *testing.T) {
	bus := events.New()
	registry, calls := newTestRegistry(t, bus)

	bus.Publish(events.Event{Topic: events.TopicUserLogin, SessionID: "session-a"})
	bus.Wait()
	require.Equal(t, int64(1), calls.Load())

	bus.Publish(events.Event{Topic: events.TopicOrganizationChanged, SessionID: "session-a"})
	bus.Wait()

	assert.Equal(t, int64(2), calls.Load())
	_ = registry
}

func TestRegistryLogoutDropsManager(t *testing.T) {
	bus := events.New()
	registry, _ := newTestRegistry(t, bus)

	manager := registry.Get("session-a")

	bus.Publish(events.Event{Topic: events.TopicUserLogout, SessionID: "session-a"})
	bus.Wait()

	_, ok := registry.Peek("session-a")
	assert.False(t, ok)
	assert.False(t, manager.Ready())
}

func TestRegistryIgnoresEventsWithoutSession(t *testing.T) {
	bus := events.New()
	registry, calls := newTestRegistry(t, bus)

	bus.Publish(events.Event{Topic: events.TopicUserLogin})
	bus.Wait()

	assert.Equal(t, int64(0), calls.Load())

	registry.ForEach(func(string, *Manager) {
		t.Fatal("no manager should exist")
	})
}

func TestRefresherSkipsUnhealthySessions(t *testing.T) {
	bus := events.New()
	registry, calls := newTestRegistry(t, bus)

	// never loaded: the refresher must leave it alone
	registry.Get("cold-session")

	refresher, err := NewRefresher(registry, "@every 1h")
	require.NoError(t, err)

	refresher.refreshAll()
	assert.Equal(t, int64(0), calls.Load())

	// once loaded it participates
	bus.Publish(events.Event{Topic: events.TopicUserLogin, SessionID: "warm-session"})
	bus.Wait()
	require.Equal(t, int64(1), calls.Load())

	refresher.refreshAll()
	assert.Equal(t, int64(2), calls.Load())
}

func TestRefresherRejectsBadSchedule(t *testing.T) {
	registry, _ := newTestRegistry(t, events.New())

	_, err := NewRefresher(registry, "not a schedule")
	assert.Error(t, err)
}
