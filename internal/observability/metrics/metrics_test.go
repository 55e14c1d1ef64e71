package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestObserveBooking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveBooking("success", 25*time.Millisecond)
	m.ObserveBooking("conflict", 5*time.Millisecond)
	m.ObserveBooking("conflict", 5*time.Millisecond)

	families := gather(t, reg)

	bookings, ok := families["vendora_scheduling_bookings_total"]
	if !ok {
		t.Fatal("bookings_total not registered")
	}
	counts := map[string]float64{}
	for _, metric := range bookings.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "outcome" {
				counts[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if counts["success"] != 1 || counts["conflict"] != 2 {
		t.Fatalf("unexpected booking counts: %v", counts)
	}

	latency, ok := families["vendora_scheduling_booking_latency_seconds"]
	if !ok {
		t.Fatal("booking_latency not registered")
	}
	if latency.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
		t.Fatalf("expected 3 latency samples, got %d", latency.GetMetric()[0].GetHistogram().GetSampleCount())
	}
}

func TestObserveTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveTransition("confirmed", "success")
	m.ObserveTransition("cancelled", "illegal")

	families := gather(t, reg)
	transitions, ok := families["vendora_scheduling_transitions_total"]
	if !ok {
		t.Fatal("transitions_total not registered")
	}
	if len(transitions.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(transitions.GetMetric()))
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveBooking("success", time.Millisecond)
	m.ObserveTransition("confirmed", "success")
	m.ObserveReferenceRetry()
}
