package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the approval module.
type Metrics struct {
	// Successful transitions by source and target state
	Transitions *prometheus.CounterVec

	// Rejected transition attempts by failure kind
	TransitionFailures *prometheus.CounterVec

	// Fast-track approvals
	FastTrackApprovals prometheus.Counter

	// Approvals expired by the validity sweep
	ExpiredApprovals prometheus.Counter
}

// New creates a new Metrics instance with all approval module metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_approval_transitions_total",
			Help: "Total successful approval request transitions by source and target state",
		}, []string{"from", "to"}),

		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_approval_transition_failures_total",
			Help: "Total rejected transition attempts by failure kind",
		}, []string{"kind"}), // kind: "invalid_transition", "validation_failed"

		FastTrackApprovals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amparo_approval_fast_track_total",
			Help: "Total approvals granted through the fast-track path",
		}),

		ExpiredApprovals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amparo_approval_expired_total",
			Help: "Total approvals expired by the validity sweep",
		}),
	}
}

// IncrementTransition records a successful transition.
func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

// IncrementFailure records a rejected transition attempt.
func (m *Metrics) IncrementFailure(kind string) {
	if m != nil {
		m.TransitionFailures.WithLabelValues(kind).Inc()
	}
}

// IncrementFastTrack records a fast-track approval.
func (m *Metrics) IncrementFastTrack() {
	if m != nil {
		m.FastTrackApprovals.Inc()
	}
}

// AddExpired records approvals expired by the sweep.
func (m *Metrics) AddExpired(n int) {
	if m != nil {
		m.ExpiredApprovals.Add(float64(n))
	}
}
