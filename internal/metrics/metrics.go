// Package metrics exposes the booking engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters recorded by the orchestrator and the
// notifier.  A nil *Metrics is valid and records nothing.
type Metrics struct {
	Bookings            *prometheus.CounterVec
	Cancellations       prometheus.Counter
	Promotions          prometheus.Counter
	Compensations       *prometheus.CounterVec
	NotificationFailure prometheus.Counter
	SeatAdjustments     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "created_total",
			Help:      "Bookings created, by resulting status.",
		}, []string{"status"}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "cancelled_total",
			Help:      "Bookings cancelled.",
		}),
		Promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "waitlist_promotions_total",
			Help:      "Waitlisted bookings promoted to confirmed.",
		}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "seat_compensations_total",
			Help:      "Seat releases issued to undo a reservation, by outcome.",
		}, []string{"outcome"}),
		NotificationFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "notification_failures_total",
			Help:      "Notifications the notifier failed to accept.",
		}),
		SeatAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seats",
			Name:      "adjustments_total",
			Help:      "Seat ledger adjustments, by direction and result.",
		}, []string{"direction", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Bookings, m.Cancellations, m.Promotions,
			m.Compensations, m.NotificationFailure, m.SeatAdjustments)
	}
	return m
}

func (m *Metrics) BookingCreated(status string) {
	if m != nil {
		m.Bookings.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) BookingCancelled() {
	if m != nil {
		m.Cancellations.Inc()
	}
}

func (m *Metrics) Promoted() {
	if m != nil {
		m.Promotions.Inc()
	}
}

// Compensated records a compensating release; outcome is "ok" or "failed".
func (m *Metrics) Compensated(outcome string) {
	if m != nil {
		m.Compensations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) NotificationFailed() {
	if m != nil {
		m.NotificationFailure.Inc()
	}
}

// SeatsAdjusted records a ledger call.  seatsToBook > 0 is a reserve.
func (m *Metrics) SeatsAdjusted(seatsToBook int, err error) {
	if m == nil {
		return
	}
	dir := "reserve"
	if seatsToBook < 0 {
		dir = "release"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SeatAdjustments.WithLabelValues(dir, result).Inc()
}
