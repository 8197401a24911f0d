package engine

import "sort"

// PerformanceStats is a copied-out snapshot of the engine's rolling counters.
type PerformanceStats struct {
	TotalTrades     int64
	TotalVolume     int64
	TradesPerSecond float64
	OrdersPerSecond float64
	AvgLatencyMs    float64
	LatencyP50Ms    float64
	LatencyP99Ms    float64
	ActiveOrders    int
	SymbolsActive   int
	RuntimeSeconds  float64
}

// latencyWindow keeps the most recent capacity match-latency samples in
// milliseconds, oldest evicted first. Not internally locked.
type latencyWindow struct {
	buf   []float64
	start int
	size  int
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &latencyWindow{buf: make([]float64, capacity)}
}

func (w *latencyWindow) Add(ms float64) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = ms
		w.size++
		return
	}
	w.buf[w.start] = ms
	w.start = (w.start + 1) % len(w.buf)
}

func (w *latencyWindow) Mean() float64 {
	if w.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.size; i++ {
		sum += w.buf[(w.start+i)%len(w.buf)]
	}
	return sum / float64(w.size)
}

// Percentiles returns p50 and p99 over the retained samples.
func (w *latencyWindow) Percentiles() (p50, p99 float64) {
	if w.size == 0 {
		return 0, 0
	}

	sorted := make([]float64, 0, w.size)
	for i := 0; i < w.size; i++ {
		sorted = append(sorted, w.buf[(w.start+i)%len(w.buf)])
	}
	sort.Float64s(sorted)

	idx := func(q float64) int {
		i := int(float64(len(sorted)) * q)
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}
	return sorted[idx(0.50)], sorted[idx(0.99)]
}

func (w *latencyWindow) Clear() {
	w.start = 0
	w.size = 0
}
