package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DonationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescue_donations_created_total",
		Help: "Total number of donations successfully posted.",
	})

	ClaimsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescue_claims_created_total",
		Help: "Total number of claims successfully created.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_transitions_total",
		Help: "Total number of accepted status transitions, by entity type.",
	},
		[]string{"entity_type"},
	)

	ExpirationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_expirations_total",
		Help: "Total number of entities expired by the sweep, by entity type.",
	},
		[]string{"entity_type"},
	)

	CascadeDeletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescue_cascade_deletions_total",
		Help: "Total number of actor deletions processed by the cascade manager.",
	})

	CascadeStepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_cascade_step_failures_total",
		Help: "Total number of failed cleanup steps during actor deletion.",
	},
		[]string{"step"},
	)

	FeedbackPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescue_feedback_published_total",
		Help: "Total number of feedback records reaching published status.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	DonationCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rescue_donation_cache_items",
		Help: "Current number of donations held in the read cache.",
	})
)
