package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatencyWindowMean(t *testing.T) {
	w := newLatencyWindow(5)
	assert.Equal(t, 0.0, w.Mean())

	w.Add(1.0)
	w.Add(2.0)
	w.Add(3.0)
	assert.InDelta(t, 2.0, w.Mean(), 1e-9)
}

func TestLatencyWindowEviction(t *testing.T) {
	w := newLatencyWindow(3)
	w.Add(10.0)
	w.Add(1.0)
	w.Add(2.0)
	w.Add(3.0) // evicts 10.0

	assert.InDelta(t, 2.0, w.Mean(), 1e-9)
}

func TestLatencyWindowPercentiles(t *testing.T) {
	w := newLatencyWindow(100)
	for i := 1; i <= 100; i++ {
		w.Add(float64(i))
	}

	p50, p99 := w.Percentiles()
	assert.InDelta(t, 51.0, p50, 1e-9)
	assert.InDelta(t, 100.0, p99, 1e-9)
}

func TestLatencyWindowPercentilesEmpty(t *testing.T) {
	w := newLatencyWindow(10)
	p50, p99 := w.Percentiles()
	assert.Equal(t, 0.0, p50)
	assert.Equal(t, 0.0, p99)
}

func TestLatencyWindowClear(t *testing.T) {
	w := newLatencyWindow(10)
	w.Add(5.0)
	w.Clear()
	assert.Equal(t, 0.0, w.Mean())
}
