package shardqueue

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartlink_client",
			Subsystem: "sendqueue",
			Name:      "submissions_total",
			Help:      "Jobs accepted into the send queue.",
		},
		[]string{"shard"},
	)

	queueFullTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartlink_client",
			Subsystem: "sendqueue",
			Name:      "queue_full_total",
			Help:      "Submissions rejected due to back-pressure.",
		},
		[]string{"shard"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "heartlink_client",
			Subsystem: "sendqueue",
			Name:      "run_duration_seconds",
			Help:      "Wall time of individual job runs.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"shard"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "heartlink_client",
			Subsystem: "sendqueue",
			Name:      "queue_depth",
			Help:      "Jobs waiting in each shard queue.",
		},
		[]string{"shard"},
	)
)

func labelFor(shard int) string { return strconv.Itoa(shard) }
