package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpay_webhooks_received_total",
		Help: "Provider callbacks received, labeled by provider and HTTP status returned",
	}, []string{"provider", "status"})

	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpay_reconcile_outcomes_total",
		Help: "Reconciliation results, labeled by provider and outcome or error kind",
	}, []string{"provider", "outcome"})

	ReconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerpay_reconcile_duration_seconds",
		Help:    "Latency of a single reconciliation including the ledger transaction",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"provider"})

	CreditedCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpay_credited_cents_total",
		Help: "Minor units committed to the ledger, labeled by provider and intent kind",
	}, []string{"provider", "kind"})

	ReferralBonusCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerpay_referral_bonus_cents_total",
		Help: "Minor units granted as referral bonuses",
	})

	InvoicesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpay_invoices_total",
		Help: "Invoice creation attempts, labeled by provider and result",
	}, []string{"provider", "result"})

	DispatchDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerpay_dispatch_dropped_total",
		Help: "Post-commit side effects dropped because the dispatch queue was full or closed",
	})

	DispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpay_dispatch_failures_total",
		Help: "Post-commit side effects that returned an error, labeled by sink",
	}, []string{"sink"})
)
