package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartlink_client",
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Change-feed events dispatched to handlers.",
		},
		[]string{"table", "type"},
	)

	eventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heartlink_client",
			Subsystem: "realtime",
			Name:      "events_dropped_total",
			Help:      "Events that arrived after their subscription ended.",
		},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heartlink_client",
			Subsystem: "realtime",
			Name:      "reconnect_failures_total",
			Help:      "Failed websocket reconnect attempts.",
		},
	)
)
