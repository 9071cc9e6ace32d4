package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)
	m.ObserveReservation("reserved")
	m.ObserveReservation("exhausted")
	m.ObserveTransition("CONFIRMED", "ok")
	m.ObservePromotion("offered")
	m.ObservePaymentDispatch("card", "paid")
	m.SetWaitlistDepth("doc-1", "2026-09-14", 3)
	m.ObserveOfferSweep(0.02)
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveReservation("reserved")
	m.ObserveTransition("CANCELLED", "ok")
	m.ObservePromotion("no_candidate")
	m.ObservePaymentDispatch("cash", "pending")
	m.SetWaitlistDepth("doc-1", "2026-09-14", 0)
	m.ObserveOfferSweep(0.1)
}
