package reactive

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the optional Prometheus instruments a PrefetchSubscriber
// reports into. A nil *Metrics (the default) disables all reporting; every
// call site below is guarded accordingly so the hot emission path pays
// nothing when metrics are not wired in.
type Metrics struct {
	Emitted    prometheus.Counter
	Discarded  prometheus.Counter
	Overflowed prometheus.Counter
	Requested  prometheus.Counter
	QueueDepth prometheus.Gauge
}

// NewMetrics registers a standard set of prefetch-operator instruments under
// the given namespace/subsystem with reg, returning them wired into a
// *Metrics. Assign the result to Config.Metrics to have a subscriber report
// into it.
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	m := &Metrics{
		Emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "emitted_total",
			Help: "Values delivered to the downstream subscriber.",
		}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "discarded_total",
			Help: "Values dropped without reaching the downstream subscriber (overflow, cancel, or terminal error).",
		}),
		Overflowed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "overflow_total",
			Help: "Queue offers rejected because the bounded queue was at capacity.",
		}),
		Requested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "upstream_requested_total",
			Help: "Total demand requested from the upstream across the subscription lifetime.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "queue_depth",
			Help: "Current number of values held in the queue the operator drains (the upstream's queue when fused).",
		}),
	}
	reg.MustRegister(m.Emitted, m.Discarded, m.Overflowed, m.Requested, m.QueueDepth)
	return m
}

func (m *Metrics) incEmitted(n int) {
	if m == nil {
		return
	}
	m.Emitted.Add(float64(n))
}

func (m *Metrics) incDiscarded(n int) {
	if m == nil {
		return
	}
	m.Discarded.Add(float64(n))
}

func (m *Metrics) incOverflowed() {
	if m == nil {
		return
	}
	m.Overflowed.Inc()
}

func (m *Metrics) incRequested(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.Requested.Add(float64(n))
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
