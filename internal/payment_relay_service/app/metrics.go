package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_relay",
			Name:      "actions_total",
			Help:      "Total Hasura action requests processed.",
		},
		[]string{"action", "outcome"}, // outcome: success, validation_error, internal_error
	)

	webhookEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_relay",
			Name:      "webhook_events_total",
			Help:      "Total Stripe webhook deliveries by event type and outcome.",
		},
		[]string{"event_type", "outcome"}, // outcome: rejected, ignored, no_pending_transaction, reconciled, error
	)

	creditsGrantedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "payment_relay",
			Name:      "credits_granted_total",
			Help:      "Sum of credits added to user balances by reconciled payments.",
		},
	)

	customersCreatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_relay",
			Name:      "stripe_customers_created_total",
			Help:      "Stripe customers created for autopay, by whether the id was persisted or lost a race.",
		},
		[]string{"result"}, // stored, superseded
	)
)

const (
	outcomeSuccess         = "success"
	outcomeValidationError = "validation_error"
	outcomeInternalError   = "internal_error"
)
