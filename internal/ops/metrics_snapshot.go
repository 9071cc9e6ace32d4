package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// SchedulingSnapshot is a dashboard-friendly cut of the live metrics.
type SchedulingSnapshot struct {
	ReservationsGranted   int64 `json:"reservations_granted"`
	ReservationsExhausted int64 `json:"reservations_exhausted"`
	PromotionsOffered     int64 `json:"promotions_offered"`
	PromotionsAccepted    int64 `json:"promotions_accepted"`
	OffersExpired         int64 `json:"offers_expired"`
	PaymentsFailed        int64 `json:"payments_failed"`
}

const (
	reservationsFamily = "careflow_scheduling_reservations_total"
	promotionsFamily   = "careflow_scheduling_promotions_total"
	paymentsFamily     = "careflow_payments_dispatches_total"
)

// SnapshotScheduling folds the registered counter families into a summary.
// Unregistered families read as zero.
func SnapshotScheduling(gatherer prometheus.Gatherer) SchedulingSnapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	var snap SchedulingSnapshot
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}
	for _, mf := range mfs {
		switch mf.GetName() {
		case reservationsFamily:
			snap.ReservationsGranted += sumCounter(mf, "outcome", "reserved")
			snap.ReservationsExhausted += sumCounter(mf, "outcome", "exhausted")
		case promotionsFamily:
			snap.PromotionsOffered += sumCounter(mf, "outcome", "offered")
			snap.PromotionsAccepted += sumCounter(mf, "outcome", "accepted")
			snap.PromotionsAccepted += sumCounter(mf, "outcome", "auto_approved")
			snap.OffersExpired += sumCounter(mf, "outcome", "expired")
		case paymentsFamily:
			snap.PaymentsFailed += sumCounter(mf, "outcome", "failed")
		}
	}
	return snap
}

func sumCounter(mf *dto.MetricFamily, labelName, labelValue string) int64 {
	var total float64
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		if !hasLabel(metric, labelName, labelValue) {
			continue
		}
		total += metric.GetCounter().GetValue()
	}
	return int64(total)
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, lp := range metric.Label {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
