package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testtrack_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PermissionDenials counts authorization denials by resource type.
	PermissionDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testtrack_permission_denials_total",
			Help: "Total number of denied authorization checks",
		},
		[]string{"resource"},
	)

	// NotificationsSent counts outbound email notifications by kind and result (sent|failed|skipped).
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testtrack_notifications_total",
			Help: "Total number of email notifications",
		},
		[]string{"kind", "result"},
	)

	// RateLimited counts requests rejected by the rate limiter, by scope.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testtrack_rate_limited_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"scope"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testtrack_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
