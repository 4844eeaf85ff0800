package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pendingConnections tracks connections that have not yet authenticated.
	pendingConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stomata_notifier_pending_connections",
			Help: "Current number of unauthenticated station connections",
		},
	)

	// stationsConnected tracks registered stations.
	stationsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stomata_notifier_stations_connected",
			Help: "Current number of authenticated stations",
		},
	)

	// connectionsAccepted counts hand-offs from the acceptor by result.
	connectionsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stomata_notifier_connections_total",
			Help: "Upgraded station connections by result (accepted/rejected/upgrade_failed)",
		},
		[]string{"result"},
	)

	// handshakesTotal counts registration attempts by result.
	handshakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stomata_notifier_handshakes_total",
			Help: "Station registration attempts by result",
		},
		[]string{"result"},
	)

	// disconnectsTotal counts registry removals by reason.
	disconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stomata_notifier_disconnects_total",
			Help: "Stations removed from the registry by reason",
		},
		[]string{"reason"},
	)

	// pushesTotal counts dispatch outcomes by push kind.
	pushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stomata_notifier_pushes_total",
			Help: "Outbound pushes by kind and result (delivered/unroutable/failed/overflow/queue_full)",
		},
		[]string{"kind", "result"},
	)

	// queueDepth is sampled at the start of each dispatch.
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stomata_notifier_queue_depth",
			Help: "Pushes waiting in the dispatch queue",
		},
	)

	backlogDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stomata_notifier_backlog_depth",
			Help: "Pushes held for stations whose send buffer was full",
		},
	)

	// tickDuration tracks how long one loop iteration takes.
	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stomata_notifier_tick_duration_seconds",
			Help:    "Duration of one accept/authenticate/evict/dispatch iteration",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1},
		},
	)
)
