package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking flows.
type SchedulingMetrics struct {
	reservationsTotal *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	promotionsTotal   *prometheus.CounterVec
	paymentsTotal     *prometheus.CounterVec
	waitlistDepth     *prometheus.GaugeVec
	offerSweepLatency prometheus.Histogram
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "reservations_total",
			Help:      "Total slot reservation attempts",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Total appointment status transitions",
		}, []string{"to", "outcome"}),
		promotionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "promotions_total",
			Help:      "Total waitlist promotion attempts",
		}, []string{"outcome"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careflow",
			Subsystem: "payments",
			Name:      "dispatches_total",
			Help:      "Total payment settlement dispatches",
		}, []string{"method", "outcome"}),
		waitlistDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "waitlist_depth",
			Help:      "Live waitlist entries per doctor per day",
		}, []string{"doctor_id", "day"}),
		offerSweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "offer_sweep_seconds",
			Help:      "Latency of promotion offer expiry sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.reservationsTotal,
		m.transitionsTotal,
		m.promotionsTotal,
		m.paymentsTotal,
		m.waitlistDepth,
		m.offerSweepLatency,
	)
	return m
}

func (m *SchedulingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, outcome).Inc()
}

func (m *SchedulingMetrics) ObservePromotion(outcome string) {
	if m == nil {
		return
	}
	m.promotionsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObservePaymentDispatch(method, outcome string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *SchedulingMetrics) SetWaitlistDepth(doctorID, day string, depth int) {
	if m == nil {
		return
	}
	m.waitlistDepth.WithLabelValues(doctorID, day).Set(float64(depth))
}

func (m *SchedulingMetrics) ObserveOfferSweep(seconds float64) {
	if m == nil {
		return
	}
	m.offerSweepLatency.Observe(seconds)
}
