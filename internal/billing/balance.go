package billing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/prohelper"
)

// balanceRefreshTimeout bounds a bus-driven background refresh.
const balanceRefreshTimeout = 10 * time.Second

// BalanceCache holds the organization balance of one session and keeps it
// coherent over the event bus: module activations request a refresh, the
// cache answers with a balance-updated event once the new figure is in.
type BalanceCache struct {
	client    *prohelper.Client
	token     TokenFunc
	bus       *events.Bus
	sessionID string

	refreshing atomic.Bool

	mu      sync.RWMutex
	current *prohelper.Balance

	unsubscribe func()
}

// NewBalanceCache creates a balance cache wired to the bus.
func NewBalanceCache(client *prohelper.Client, token TokenFunc, bus *events.Bus, sessionID string) *BalanceCache {
	c := &BalanceCache{
		client:    client,
		token:     token,
		bus:       bus,
		sessionID: sessionID,
	}

	c.unsubscribe = bus.Subscribe(events.TopicBalanceRefreshRequested, func(ev events.Event) {
		if ev.SessionID != sessionID {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), balanceRefreshTimeout)
		defer cancel()

		if _, err := c.Refresh(ctx); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Msg("requested balance refresh failed")
		}
	})

	return c
}

// Close detaches the cache from the bus.
func (c *BalanceCache) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Refresh fetches the balance. Concurrent callers while a refresh is running
// get the cached figure, the operation never stacks.
func (c *BalanceCache) Refresh(ctx context.Context) (*prohelper.Balance, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		return c.Current(), nil
	}
	defer c.refreshing.Store(false)

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := c.client.Balance(ctx, token)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.current = balance
	c.mu.Unlock()

	c.bus.Publish(events.Event{
		Topic:     events.TopicBalanceUpdated,
		SessionID: c.sessionID,
	})

	return balance, nil
}

// Current returns the cached balance, nil before the first refresh.
func (c *BalanceCache) Current() *prohelper.Balance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

// Covers reports whether the cached balance covers the given amount.
// Without a cached balance the answer is no.
func (c *BalanceCache) Covers(amount float64) bool {
	current := c.Current()

	return current != nil && current.Amount >= amount
}
