package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records the commit path outcomes.
type CheckoutMetrics struct {
	duration        *prometheus.HistogramVec
	committed       *prometheus.CounterVec
	failedOver      prometheus.Counter
	conflictRetries prometheus.Counter
	rejected        *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout commits in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	committed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_committed_total",
		Help: "Orders committed to the primary store.",
	}, []string{"payment_method"})
	failedOver := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "failover_orders_total",
		Help: "Orders parked in the failover sink.",
	})
	conflictRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_conflict_retries_total",
		Help: "Transaction retries caused by serialization conflicts.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_rejected_total",
		Help: "Checkout attempts rejected before commit.",
	}, []string{"reason"})
	reg.MustRegister(duration, committed, failedOver, conflictRetries, rejected)
	return &CheckoutMetrics{
		duration:        duration,
		committed:       committed,
		failedOver:      failedOver,
		conflictRetries: conflictRetries,
		rejected:        rejected,
	}
}

// ObserveDuration records the commit duration for an outcome label.
func (c *CheckoutMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCommitted increments the committed counter for the payment method.
func (c *CheckoutMetrics) IncCommitted(paymentMethod string) {
	if c == nil || c.committed == nil {
		return
	}
	c.committed.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// IncFailedOver increments the failover counter.
func (c *CheckoutMetrics) IncFailedOver() {
	if c == nil || c.failedOver == nil {
		return
	}
	c.failedOver.Inc()
}

// IncConflictRetry increments the serialization retry counter.
func (c *CheckoutMetrics) IncConflictRetry() {
	if c == nil || c.conflictRetries == nil {
		return
	}
	c.conflictRetries.Inc()
}

// IncRejected increments the rejection counter for the given reason.
func (c *CheckoutMetrics) IncRejected(reason string) {
	if c == nil || c.rejected == nil {
		return
	}
	c.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
