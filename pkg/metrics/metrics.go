package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics records subscription lifecycle outcomes.
type BillingMetrics struct {
	subscriptions   *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	decisionLatency *prometheus.HistogramVec
	staleTypes      prometheus.Gauge
}

// NewBillingMetrics registers the lifecycle metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	subscriptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_subscriptions_created_total",
		Help: "Subscriptions created, by product.",
	}, []string{"product"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_approval_decisions_total",
		Help: "Approval decisions appended, by terminal status.",
	}, []string{"status"})
	decisionLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_processor_decision_seconds",
		Help:    "Latency of processor approval decisions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"processor"})
	staleTypes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "billing_stale_product_types",
		Help: "Product type rows with no matching catalog product.",
	})
	reg.MustRegister(subscriptions, decisions, decisionLatency, staleTypes)
	return &BillingMetrics{
		subscriptions:   subscriptions,
		decisions:       decisions,
		decisionLatency: decisionLatency,
		staleTypes:      staleTypes,
	}
}

// IncSubscriptionCreated counts a newly created subscription.
func (m *BillingMetrics) IncSubscriptionCreated(product string) {
	if m == nil || m.subscriptions == nil {
		return
	}
	m.subscriptions.WithLabelValues(normalizeLabel(product)).Inc()
}

// IncDecision counts a terminal approval decision.
func (m *BillingMetrics) IncDecision(status string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveDecisionLatency records how long the processor took to answer.
func (m *BillingMetrics) ObserveDecisionLatency(processor string, duration time.Duration) {
	if m == nil || m.decisionLatency == nil {
		return
	}
	m.decisionLatency.WithLabelValues(normalizeLabel(processor)).Observe(duration.Seconds())
}

// SetStaleProductTypes reports the current count of stale product types.
func (m *BillingMetrics) SetStaleProductTypes(count int) {
	if m == nil || m.staleTypes == nil {
		return
	}
	m.staleTypes.Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
