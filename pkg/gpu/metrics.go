package gpu

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the scheduler's contention state as Prometheus gauges, the
// same registration style pkg/observability uses for its own subsystems.
type Metrics struct {
	queueDepth     *prometheus.GaugeVec
	holder         *prometheus.GaugeVec
	holdDuration   *prometheus.HistogramVec
	acquireTimeout *prometheus.CounterVec
}

// NewMetrics registers the scheduler's gauges on reg. reg may be nil, in
// which case metrics are disabled and every exported method is a no-op.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "gpu_scheduler", Name: "queue_depth",
			Help: "Number of jobs waiting for a GPU lock, by device and class.",
		}, []string{"gpu_id", "class"}),
		holder: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "gpu_scheduler", Name: "holder",
			Help: "1 if this class currently holds the device's lock, else 0.",
		}, []string{"gpu_id", "class"}),
		holdDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "gpu_scheduler", Name: "hold_duration_seconds",
			Help:    "How long a lease held the device lock before releasing.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~400s
		}, []string{"gpu_id", "class"}),
		acquireTimeout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gpu_scheduler", Name: "acquire_timeouts_total",
			Help: "Acquire calls that gave up with resource_busy.",
		}, []string{"gpu_id", "class"}),
	}
	reg.MustRegister(m.queueDepth, m.holder, m.holdDuration, m.acquireTimeout)
	return m
}

func (m *Metrics) setQueueDepth(gpuID string, counts map[Class]int) {
	for _, class := range []Class{ClassLLMPrimary, ClassOCRVL} {
		m.queueDepth.WithLabelValues(gpuID, string(class)).Set(float64(counts[class]))
	}
}

func (m *Metrics) setHolder(gpuID string, class Class, held bool) {
	v := 0.0
	if held {
		v = 1.0
	}
	m.holder.WithLabelValues(gpuID, string(class)).Set(v)
}

func (m *Metrics) recordHoldDuration(gpuID string, class Class, d time.Duration) {
	m.holdDuration.WithLabelValues(gpuID, string(class)).Observe(d.Seconds())
}

func (m *Metrics) recordTimeout(gpuID string, class Class) {
	m.acquireTimeout.WithLabelValues(gpuID, string(class)).Inc()
}
