package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

// BookingMetrics exposes counters/histograms for scheduling flows.
type BookingMetrics struct {
	attemptsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	slotLatency      prometheus.Histogram
	cascadeCancelled prometheus.Counter
	cascadeOverflow  prometheus.Counter
	lockWait         *prometheus.HistogramVec
}

var _ scheduling.Metrics = (*BookingMetrics)(nil)

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "malaikasante",
			Subsystem: "scheduling",
			Name:      "booking_attempts_total",
			Help:      "Booking requests by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "malaikasante",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Booking lifecycle transitions",
		}, []string{"from", "to"}),
		slotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "malaikasante",
			Subsystem: "scheduling",
			Name:      "slot_generation_seconds",
			Help:      "Latency of slot generation including storage reads",
			Buckets:   prometheus.DefBuckets,
		}),
		cascadeCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "malaikasante",
			Subsystem: "scheduling",
			Name:      "leave_cascade_cancelled_total",
			Help:      "Bookings cancelled by provider leave",
		}),
		cascadeOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "malaikasante",
			Subsystem: "scheduling",
			Name:      "leave_cascade_overflow_total",
			Help:      "Bookings left for a follow-up sweep after a cascade hit its cap",
		}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "malaikasante",
			Subsystem: "scheduling",
			Name:      "provider_lock_wait_seconds",
			Help:      "Time spent acquiring the provider lock",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		}, []string{"acquired"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.transitionsTotal, m.slotLatency, m.cascadeCancelled, m.cascadeOverflow, m.lockWait)
	return m
}

func (m *BookingMetrics) ObserveBookingAttempt(kind scheduling.Kind) {
	if m == nil {
		return
	}
	outcome := string(kind)
	if outcome == "" {
		outcome = "ok"
	}
	m.attemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to scheduling.BookingStatus) {
	if m == nil {
		return
	}
	label := string(from)
	if label == "" {
		label = "none"
	}
	m.transitionsTotal.WithLabelValues(label, string(to)).Inc()
}

func (m *BookingMetrics) ObserveSlotGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.slotLatency.Observe(d.Seconds())
}

func (m *BookingMetrics) ObserveCascade(cancelled, remaining int) {
	if m == nil {
		return
	}
	m.cascadeCancelled.Add(float64(cancelled))
	m.cascadeOverflow.Add(float64(remaining))
}

func (m *BookingMetrics) ObserveLockWait(d time.Duration, err error) {
	if m == nil {
		return
	}
	acquired := "true"
	if err != nil {
		acquired = "false"
	}
	m.lockWait.WithLabelValues(acquired).Observe(d.Seconds())
}
