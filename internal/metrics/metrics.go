// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CredentialsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_credentials_generated_total",
			Help: "Total number of candidate credentials generated",
		},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_logins_total",
			Help: "Login attempts by user type and outcome",
		},
		[]string{"user_type", "outcome"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_submissions_total",
			Help: "Recorded exam submissions by status and pass/fail outcome",
		},
		[]string{"status", "outcome"},
	)

	ScoreHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_score_percent",
			Help:    "Distribution of exam scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	LedgerSinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_ledger_sink_failures_total",
			Help: "Failed writes to a result ledger sink",
		},
		[]string{"sink"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_notifications_total",
			Help: "Notification deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
