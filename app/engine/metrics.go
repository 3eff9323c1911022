package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_messages_sent_total",
		Help: "Messages accepted by the session gateway",
	}, []string{"kind"})

	metricMessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_messages_failed_total",
		Help: "Messages the gateway rejected or that timed out",
	}, []string{"kind"})

	metricQuotaDeferrals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_quota_deferrals_total",
		Help: "Runs parked because the session quota was exhausted",
	})

	metricSessionOffline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_session_offline_total",
		Help: "Dispatch attempts blocked by a disconnected session",
	})

	metricActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_active_workers",
		Help: "Send workers currently draining a run",
	})

	metricSendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_send_duration_seconds",
		Help:    "Wall time of a single gateway dispatch",
		Buckets: prometheus.DefBuckets,
	})
)
