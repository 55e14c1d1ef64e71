// Package metrics exposes prometheus instrumentation for the scheduling engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulingMetrics exposes counters/histograms for booking and lifecycle flows.
type SchedulingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	bookingLatency   prometheus.Histogram
	refRetriesTotal  prometheus.Counter
}

// NewSchedulingMetrics registers the scheduling metric set.
func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vendora",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vendora",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Total lifecycle transition attempts by target status and outcome",
		}, []string{"transition", "outcome"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vendora",
			Subsystem: "scheduling",
			Name:      "booking_latency_seconds",
			Help:      "Latency of the book operation",
			Buckets:   prometheus.DefBuckets,
		}),
		refRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vendora",
			Subsystem: "scheduling",
			Name:      "reference_retries_total",
			Help:      "Reference regenerations forced by uniqueness collisions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.bookingLatency, m.refRetriesTotal)
	return m
}

// ObserveBooking records a booking attempt outcome and its latency.
func (m *SchedulingMetrics) ObserveBooking(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(elapsed.Seconds())
}

// ObserveTransition records a lifecycle transition attempt.
func (m *SchedulingMetrics) ObserveTransition(transition, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(transition, outcome).Inc()
}

// ObserveReferenceRetry records one reference regeneration.
func (m *SchedulingMetrics) ObserveReferenceRetry() {
	if m == nil {
		return
	}
	m.refRetriesTotal.Inc()
}
