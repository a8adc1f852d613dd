package metrics

import (
	"github.com/Dan9191/rent-service/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rent_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent_reminder_emails_total",
		Help: "Reminder digests by outcome",
	}, []string{"outcome"})

	IncrementAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rent_increment_alerts",
		Help: "Customers per alert tier at the last reminder run",
	}, []string{"tier"})

	IncrementOverdue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rent_increment_overdue",
		Help: "Customers with an overdue, unapplied increment at the last reminder run",
	})

	EvaluationFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rent_increment_evaluation_failures",
		Help: "Customers that could not be evaluated at the last reminder run",
	})
)

// ObserveReport publishes tier counts from an alert report
func ObserveReport(report *models.AlertReport) {
	counts := map[models.AlertTier]int{
		models.TierDueToday: 0,
		models.TierDueSoon:  0,
		models.TierNormal:   0,
	}
	overdue := 0
	for _, a := range report.Alerts {
		counts[a.Tier]++
		if a.Increment.IsOverdue {
			overdue++
		}
	}
	for tier, n := range counts {
		IncrementAlerts.WithLabelValues(tier.String()).Set(float64(n))
	}
	IncrementOverdue.Set(float64(overdue))
	EvaluationFailures.Set(float64(len(report.Failures)))
}
