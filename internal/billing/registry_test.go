package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/prohelper"
)

func newBillingRegistry(bus *events.Bus) *Registry {
	client := prohelper.New("http://api.invalid", time.Second)

	return NewRegistry(client, bus, func(string) TokenFunc {
		return staticToken("tok")
	})
}

func TestRegistryStateIsPerSession(t *testing.T) {
	registry := newBillingRegistry(events.New())

	first := registry.Get("session-a")
	assert.Same(t, first, registry.Get("session-a"))
	assert.NotSame(t, first, registry.Get("session-b"))

	assert.Same(t, first.Limits, registry.Limits("session-a"))
}

func TestRegistryLogoutDropsState(t *testing.T) {
	bus := events.New()
	registry := newBillingRegistry(bus)

	first := registry.Get("session-a")

	bus.Publish(events.Event{Topic: events.TopicUserLogout, SessionID: "session-a"})
	bus.Wait()

	assert.NotSame(t, first, registry.Get("session-a"))
}

func TestRegistryOrganizationSwitchDropsState(t *testing.T) {
	bus := events.New()
	registry := newBillingRegistry(bus)

	first := registry.Get("session-a")
	other := registry.Get("session-b")

	bus.Publish(events.Event{Topic: events.TopicOrganizationChanged, SessionID: "session-a"})
	bus.Wait()

	assert.NotSame(t, first, registry.Get("session-a"))
	assert.Same(t, other, registry.Get("session-b"))
}
