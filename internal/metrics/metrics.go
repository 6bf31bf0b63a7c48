package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters for booking, transitions and session checks.
type SchedulingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	scheduleEdits     *prometheus.CounterVec
	eligibilityChecks *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "appointment_transitions_total",
			Help:      "Appointment status transitions by target status and outcome",
		}, []string{"transition", "outcome"}),
		scheduleEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "schedule_edits_total",
			Help:      "Day schedule replace/delete operations by outcome",
		}, []string{"operation", "outcome"}),
		eligibilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "session",
			Name:      "eligibility_checks_total",
			Help:      "Session join eligibility checks by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.scheduleEdits, m.eligibilityChecks)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(transition, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(transition, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveScheduleEdit(operation, outcome string) {
	if m == nil {
		return
	}
	m.scheduleEdits.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveEligibility(result string) {
	if m == nil {
		return
	}
	m.eligibilityChecks.WithLabelValues(result).Inc()
}
