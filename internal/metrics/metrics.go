package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cantine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cantine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UsersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cantine_users_created_total",
			Help: "Total number of users created",
		},
	)

	UsersDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cantine_users_deleted_total",
			Help: "Total number of users deleted",
		},
	)

	SoldeAdjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cantine_solde_adjustments_total",
			Help: "Total number of balance adjustments",
		},
		[]string{"direction"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cantine_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cantine_emails_sent_total",
			Help: "Total number of emails processed by the mail worker",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cantine_email_queue_length",
			Help: "Current length of email queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordUserCreated() {
	UsersCreatedTotal.Inc()
}

func RecordUserDeleted() {
	UsersDeletedTotal.Inc()
}

// RecordSoldeAdjustment counts balance changes; direction is credit, debit or rejected.
func RecordSoldeAdjustment(direction string) {
	SoldeAdjustmentsTotal.WithLabelValues(direction).Inc()
}

func RecordLogin(status string) {
	LoginsTotal.WithLabelValues(status).Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}
