// Package events implements a typed in-process publish/subscribe bus.
//
// It replaces ad hoc cross-feature signaling with explicit topics: login,
// logout and organization switches invalidate the permission snapshot, and
// balance topics keep the billing caches coherent without the publishers
// holding references to the subscribers.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Topic identifies an event class on the bus.
type Topic string

const (
	// TopicUserLogin is published after a successful login.
	TopicUserLogin Topic = "user-login"
	// TopicUserLogout is published when the user logs out.
	TopicUserLogout Topic = "user-logout"
	// TopicOrganizationChanged is published when the active organization of a session changes.
	TopicOrganizationChanged Topic = "organization-changed"
	// TopicBalanceUpdated is published after the balance cache was refreshed.
	TopicBalanceUpdated Topic = "balance-updated"
	// TopicBalanceRefreshRequested asks the balance cache to refetch.
	TopicBalanceRefreshRequested Topic = "balance-refresh-requested"
)

// Event is a single bus message.
type Event struct {
	Topic          Topic
	SessionID      string
	UserID         uint64
	OrganizationID uint64
}

// Handler consumes a published event.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus is a process-wide publish/subscribe channel with typed topics.
// The zero value is not usable, create one with New.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic][]subscription
	// wg tracks in-flight asynchronous deliveries so tests can drain the bus.
	wg sync.WaitGroup
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs: make(map[Topic][]subscription),
	}
}

// Subscribe registers a handler for a topic and returns a cancel func.
func (b *Bus) Subscribe(topic Topic, fn Handler) func() {
	if fn == nil {
		log.Warn().Str("topic", string(topic)).Msg("nil event handler ignored")
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		current := b.subs[topic]
		for i, sub := range current {
			if sub.id == id {
				b.subs[topic] = append(current[:i:i], current[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to every subscriber of its topic.
// Delivery is asynchronous, publishers never block on slow subscribers.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[ev.Topic]))
	copy(subs, b.subs[ev.Topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.wg.Add(1)

		go func(s subscription) {
			defer b.wg.Done()
			s.fn(ev)
		}(sub)
	}
}

// Wait blocks until all in-flight deliveries finished.
func (b *Bus) Wait() {
	b.wg.Wait()
}
