package metrics

import (
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UploadMetrics records coordinator operations and session transitions
type UploadMetrics struct {
	ops         *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
}

var _ port.UploadObserver = (*UploadMetrics)(nil)

// NewUploadMetrics registers the upload collectors on reg
func NewUploadMetrics(reg prometheus.Registerer) *UploadMetrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upload",
		Name:      "operations_total",
		Help:      "Total coordinator operations by result kind.",
	}, []string{"op", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upload",
		Name:      "operation_duration_seconds",
		Help:      "Histogram of coordinator operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upload",
		Name:      "session_transitions_total",
		Help:      "Number of sessions entering each status.",
	}, []string{"status"})

	reg.MustRegister(ops, latency, transitions)

	return &UploadMetrics{
		ops:         ops,
		latency:     latency,
		transitions: transitions,
	}
}

// ObserveOperation records one coordinator call. result is "ok" or the error kind.
func (m *UploadMetrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveTransition counts a session entering status
func (m *UploadMetrics) ObserveTransition(status domain.UploadSessionStatus) {
	m.transitions.WithLabelValues(string(status)).Inc()
}
