// Package billing holds the client-side subscription state of one session:
// usage-vs-limit reports, the module catalog with activation state, and the
// organization balance. It mirrors what the platform computes and never
// recomputes limits or prices locally.
package billing

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/prohelper/prohelper-web/internal/prohelper"
)

// TokenFunc yields the API token of the session owning the service.
type TokenFunc func(ctx context.Context) (string, error)

// WarningCallback receives subscription warnings. Callbacks fire on every
// fetch that carries warnings, not only on state transitions, because the
// surfaces rendering them are stateless between requests.
type WarningCallback func(prohelper.Warning)

// Limits caches the usage-vs-limit report of the session's organization.
type Limits struct {
	client *prohelper.Client
	token  TokenFunc

	refreshing atomic.Bool

	mu        sync.RWMutex
	current   *prohelper.SubscriptionLimits
	callbacks []WarningCallback
}

// NewLimits creates an empty limits cache.
func NewLimits(client *prohelper.Client, token TokenFunc) *Limits {
	return &Limits{
		client: client,
		token:  token,
	}
}

// OnWarning registers a callback for subscription warnings.
func (l *Limits) OnWarning(fn WarningCallback) {
	if fn == nil {
		return
	}

	l.mu.Lock()
	l.callbacks = append(l.callbacks, fn)
	l.mu.Unlock()
}

// Refresh fetches the current report. While a refresh is already running,
// concurrent callers return the cached report instead of piling on.
func (l *Limits) Refresh(ctx context.Context) (*prohelper.SubscriptionLimits, error) {
	if !l.refreshing.CompareAndSwap(false, true) {
		return l.Current(), nil
	}
	defer l.refreshing.Store(false)

	token, err := l.token(ctx)
	if err != nil {
		return nil, err
	}

	limits, err := l.client.SubscriptionLimits(ctx, token)
	if err != nil {
		log.Warn().Err(err).Msg("subscription limits refresh failed")

		return nil, err
	}

	l.mu.Lock()
	l.current = limits
	callbacks := make([]WarningCallback, len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.mu.Unlock()

	for _, warning := range limits.Warnings {
		for _, fn := range callbacks {
			fn(warning)
		}
	}

	return limits, nil
}

// Current returns the cached report, nil before the first refresh.
func (l *Limits) Current() *prohelper.SubscriptionLimits {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.current
}

// NeedsUpgrade reports whether the platform flagged the subscription for an
// upgrade. The flag comes from the server verbatim, it is never derived from
// the limit items locally.
func (l *Limits) NeedsUpgrade() bool {
	current := l.Current()

	return current != nil && current.UpgradeRequired
}

// Exceeded returns the limit items whose usage reached the limit.
func (l *Limits) Exceeded() map[string]prohelper.LimitItem {
	return l.itemsWithStatus(prohelper.LimitExceeded)
}

// Warnings returns the limit items in the warning band.
func (l *Limits) Warnings() map[string]prohelper.LimitItem {
	return l.itemsWithStatus(prohelper.LimitWarning)
}

func (l *Limits) itemsWithStatus(status prohelper.LimitStatus) map[string]prohelper.LimitItem {
	current := l.Current()
	if current == nil {
		return nil
	}

	items := make(map[string]prohelper.LimitItem)
	for name, item := range current.Limits {
		if item.Status == status {
			items[name] = item
		}
	}

	return items
}

// CanCreate reports whether the organization may create another unit of the
// resource. Unknown resources are allowed, the platform enforces the final
// word on its side anyway.
func (l *Limits) CanCreate(resource string) bool {
	current := l.Current()
	if current == nil || !current.HasSubscription {
		return false
	}

	item, ok := current.Limits[resource]
	if !ok {
		return true
	}

	return item.IsUnlimited || item.Remaining > 0
}
