package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Triage

	TriageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_outcomes_total",
			Help: "Ticket triage runs by result",
		},
		[]string{"result"},
	)

	TriageFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_ai_fallbacks_total",
			Help: "AI classifications replaced by the fallback result",
		},
	)

	TriageStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_step_duration_seconds",
			Help:    "Duration of each triage step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Outgoing emails by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Events

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Delivered events by name and outcome",
		},
		[]string{"event", "outcome"},
	)
)
