package heartlink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	presenceWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartlink_client",
			Name:      "presence_writes_total",
			Help:      "Presence writes by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	messagesEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heartlink_client",
			Name:      "messages_enqueued_total",
			Help:      "Messages accepted into the send queue.",
		},
	)

	messagesFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heartlink_client",
			Name:      "messages_send_failures_total",
			Help:      "Messages whose persistent insert ultimately failed.",
		},
	)
)
