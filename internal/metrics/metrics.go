// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthorizeDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_authorize_decisions_total",
			Help: "Entitlement decisions by payment method and denial reason",
		},
		[]string{"method", "reason"},
	)

	Settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_settlements_total",
			Help: "Settled search attempts by payment method and outcome",
		},
		[]string{"method", "outcome"},
	)

	SettleConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lookup_settle_conflicts_total",
			Help: "Conditional updates that lost a race during settlement",
		},
	)

	ChargedMinorUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_charged_minor_units_total",
			Help: "Money moved through account balances, in minor units, by source",
		},
		[]string{"source"},
	)

	SubscriptionPurchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_subscription_purchases_total",
			Help: "Subscription purchase attempts by plan and result",
		},
		[]string{"plan", "result"},
	)

	ReferralEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_referral_events_total",
			Help: "Referral registrations and confirmations",
		},
		[]string{"event"},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_provider_requests_total",
			Help: "Requests to the search provider by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lookup_provider_request_seconds",
			Help:    "Search provider latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_http_requests_total",
			Help: "Reporting API requests",
		},
		[]string{"method", "path", "status"},
	)
)
