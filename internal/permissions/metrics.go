package permissions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadsTotal = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Name: "permission_snapshot_loads_total",
			Help: "Number of permission snapshot loads, differentiated by result.",
		},
		[]string{"result"},
	)

	checksTotal = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Name: "permission_checks_total",
			Help: "Number of cached permission checks, differentiated by decision.",
		},
		[]string{"decision"},
	)
)
