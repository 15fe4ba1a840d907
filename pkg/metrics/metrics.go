package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peopledesk_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// AccountLockouts counts accounts transitioned to LOCKED by the failed-attempt tracker.
	AccountLockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peopledesk_account_lockouts_total",
			Help: "Total number of account lockouts triggered",
		},
	)

	// SessionsCreated counts sessions created across register, login and refresh.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peopledesk_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	// MailDispatches counts fire-and-forget mail sends by result (sent|failed).
	MailDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peopledesk_mail_dispatches_total",
			Help: "Total number of outbound mail dispatches",
		},
		[]string{"result"},
	)

	// APILatency observes request durations per method, path and status.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peopledesk_api_request_duration_seconds",
			Help:    "HTTP request latency distributions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
