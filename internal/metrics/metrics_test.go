package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewTimerStartsImmediately(t *testing.T) {
	timer := NewTimer()
	assert.False(t, timer.start.IsZero())
	assert.Less(t, timer.Duration(), time.Second)
}

func TestTimerDurationIncreases(t *testing.T) {
	timer := NewTimer()
	d1 := timer.Duration()
	time.Sleep(5 * time.Millisecond)
	d2 := timer.Duration()
	assert.Greater(t, d2, d1)
}

func TestTimerObserveDuration(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_objstore_duration_seconds",
		Help: "test",
	})
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	timer.ObserveDuration(h)
}

func TestTimerObserveVec(t *testing.T) {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_objstore_duration_vec_seconds",
		Help: "test",
	}, []string{"operation"})
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	timer.ObserveVec(hv, "push")
}

func TestHandlerNotNil(t *testing.T) {
	assert.NotNil(t, Handler())
}
