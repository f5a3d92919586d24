package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachdesk_email_attempts_total",
		Help: "Email delivery attempts by transport and outcome",
	}, []string{"transport", "status"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachdesk_webhook_events_total",
		Help: "Stripe webhook deliveries by event type and outcome",
	}, []string{"type", "outcome"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coachdesk_webhook_duration_seconds",
		Help:    "Time spent handling a Stripe webhook delivery",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachdesk_jobs_total",
		Help: "Background jobs by type and final status",
	}, []string{"type", "status"})
)
