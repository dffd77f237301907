package permissions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultRefreshSchedule is the cron spec of the background snapshot refresh.
const DefaultRefreshSchedule = "@every 15m"

// Refresher periodically refreshes the snapshots of all registered sessions,
// so long-lived sessions pick up grant changes without a page action.
type Refresher struct {
	registry *Registry
	cron     *cron.Cron
}

// NewRefresher schedules a periodic refresh over the registry.
func NewRefresher(registry *Registry, schedule string) (*Refresher, error) {
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}

	c := cron.New()

	r := &Refresher{
		registry: registry,
		cron:     c,
	}

	if _, err := c.AddFunc(schedule, r.refreshAll); err != nil {
		return nil, errors.Wrapf(err, "invalid refresh schedule %q", schedule)
	}

	return r, nil
}

// Start begins the schedule.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// refreshAll reloads every session that has a healthy snapshot. Sessions that
// never loaded or whose last load failed are left alone, their next page
// request drives the reload instead.
func (r *Refresher) refreshAll() {
	r.registry.ForEach(func(sessionID string, m *Manager) {
		if !m.Ready() || m.LastError() != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), DefaultLoadTimeout)
		defer cancel()

		if _, err := m.ForceLoad(ctx); err != nil {
			log.Debug().Err(err).
				Str("session_id", sessionID).
				Msg("background permission refresh failed")
		}
	})
}
