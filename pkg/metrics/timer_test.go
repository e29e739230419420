package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	d1 := timer.Duration()
	assert.GreaterOrEqual(t, d1, 20*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, timer.Duration(), d1)
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_duration_seconds", Help: "test"},
		[]string{"operation"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(vec, "add_node")
	timer.ObserveDurationVec(vec, "add_node")

	assert.Equal(t, 1, testutil.CollectAndCount(vec))
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("test_op", "error"))

	ObserveOperation("test_op", NewTimer(), assert.AnError)

	assert.Equal(t, before+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("test_op", "error")))
}
