package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const OutcomeOK = "ok"

// Metrics provides observability for the loan lifecycle engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Transition attempts by action and outcome (ok or error kind)
	Transitions *prometheus.CounterVec

	// Transition latency including the row lock and the save
	TransitionLatency *prometheus.HistogramVec

	// Sum of all recorded repayments
	PaymentsAmount prometheus.Counter
}

// New registers the engine metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peerlend_loan_transitions_total",
			Help: "Loan transition attempts by action and outcome",
		}, []string{"action", "outcome"}),

		TransitionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peerlend_loan_transition_duration_seconds",
			Help:    "Duration of loan transitions by action",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"action"}),

		PaymentsAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "peerlend_loan_payments_amount_total",
			Help: "Total amount of recorded loan repayments",
		}),
	}
}

// ObserveTransition records one transition attempt.
func (m *Metrics) ObserveTransition(action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, outcome).Inc()
	m.TransitionLatency.WithLabelValues(action).Observe(d.Seconds())
}

// AddPayment adds a successfully applied repayment amount.
func (m *Metrics) AddPayment(amount float64) {
	if m != nil {
		m.PaymentsAmount.Add(amount)
	}
}
