package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_admissions_total",
			Help: "Reservation admission attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_checkins_total",
			Help: "Check-in attempts by outcome",
		},
		[]string{"outcome"},
	)

	cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_cancellations_total",
			Help: "Reservation cancellations by source",
		},
		[]string{"source"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reservation_sweep_duration_seconds",
			Help:    "Duration of expiry sweep cycles",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	sweepCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_sweep_cancelled_total",
			Help: "Reservations cancelled by the expiry sweeper",
		},
	)
)

// TrackAdmission records one admission attempt.  Outcome is "confirmed",
// "pending", "duplicate", "exhausted" or "error".
func TrackAdmission(outcome string) {
	admissions.WithLabelValues(outcome).Inc()
}

// TrackCheckin records one check-in attempt.  Outcome is "used",
// "already_used", "rejected" or "error".
func TrackCheckin(outcome string) {
	checkins.WithLabelValues(outcome).Inc()
}

// TrackCancellation records one cancellation.  Source is "user" or "sweeper".
func TrackCancellation(source string) {
	cancellations.WithLabelValues(source).Inc()
}

// TrackSweep records the duration of one sweep cycle and how many
// reservations it cancelled.
func TrackSweep(seconds float64, cancelled int) {
	sweepDuration.Observe(seconds)
	sweepCancelled.Add(float64(cancelled))
}
