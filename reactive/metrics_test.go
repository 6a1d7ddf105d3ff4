package reactive

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewMetricsRegistersAndTracksOperatorActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "reactor", "prefetch")

	source := sliceSource[int]{values: []int{1, 2, 3}, errAfter: -1}
	downstream := &recordingSubscriber[int]{autoRequest: Unbounded}

	cfg := testConfig[int](4)
	cfg.Metrics = m
	Prefetch[int](source, cfg).Subscribe(downstream)

	assert.Equal(t, float64(3), counterValue(t, m.Emitted))
	assert.Equal(t, float64(7), counterValue(t, m.Requested))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.incEmitted(1)
		m.incDiscarded(1)
		m.incOverflowed()
		m.incRequested(1)
		m.setQueueDepth(1)
	})
}
