package chainclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/chainclient/updater"
)

// Metrics tracks Chain Driver quorum-call latency and outcome, wired
// the way the teacher's metrics package wraps a prometheus.Registerer.
type Metrics struct {
	latency  *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chainclient",
			Name:      "quorum_call_seconds",
			Help:      "Time spent in a single communicate_with_quorum round, by action kind.",
		}, []string{"action"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainclient",
			Name:      "quorum_failures_total",
			Help:      "Quorum rounds that ended without reaching quorum, by action kind.",
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.latency, m.failures)
	}
	return m
}

func (m *Metrics) observeQuorum(kind updater.ActionKind, d time.Duration, err error) {
	if m == nil {
		return
	}
	label := actionLabel(kind)
	m.latency.WithLabelValues(label).Observe(d.Seconds())
	if err != nil {
		m.failures.WithLabelValues(label).Inc()
	}
}

func actionLabel(kind updater.ActionKind) string {
	switch kind {
	case updater.SubmitBlockForConfirmation:
		return "submit_confirmation"
	case updater.SubmitBlockForValidation:
		return "submit_validation"
	case updater.FinalizeBlock:
		return "finalize"
	case updater.AdvanceToNextBlockHeight:
		return "advance"
	default:
		return "unknown"
	}
}
