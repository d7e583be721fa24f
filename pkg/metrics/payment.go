package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records the behavior of the confirmation poller and the
// guest-cart merge path.
type PaymentMetrics struct {
	probes       *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	merges       *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	probes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_probes_total",
		Help: "Status probes issued against the payment gateway.",
	}, []string{"result"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_terminal_outcomes_total",
		Help: "Terminal payment states reached by the poller.",
	}, []string{"state"})
	pollDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_poll_duration_seconds",
		Help:    "Wall-clock time from poll start to terminal state.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"state"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_attempts_total",
		Help: "Guest cart merge attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(probes, outcomes, pollDuration, merges)
	return &PaymentMetrics{
		probes:       probes,
		outcomes:     outcomes,
		pollDuration: pollDuration,
		merges:       merges,
	}
}

// IncProbe counts one status probe with its result label
// (ok, not_found_yet, error).
func (p *PaymentMetrics) IncProbe(result string) {
	if p == nil || p.probes == nil {
		return
	}
	p.probes.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveOutcome records a terminal state and the time it took to reach it.
func (p *PaymentMetrics) ObserveOutcome(state string, elapsed time.Duration) {
	if p == nil || p.outcomes == nil {
		return
	}
	label := normalizeLabel(state)
	p.outcomes.WithLabelValues(label).Inc()
	if p.pollDuration != nil {
		p.pollDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	}
}

// IncMerge counts one merge attempt with its outcome label
// (merged, noop, failed).
func (p *PaymentMetrics) IncMerge(outcome string) {
	if p == nil || p.merges == nil {
		return
	}
	p.merges.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
