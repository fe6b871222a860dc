package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencyTracker records broadcast latency samples in a circular buffer
// and computes percentiles (p50, p95, p99). Thread-safe.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64 // milliseconds
	pos     int
	count   int
}

// NewLatencyTracker creates a tracker holding the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 8192
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds a latency sample in milliseconds.
func (lt *LatencyTracker) Record(latencyMs float64) {
	lt.mu.Lock()
	lt.samples[lt.pos] = latencyMs
	lt.pos = (lt.pos + 1) % len(lt.samples)
	if lt.count < len(lt.samples) {
		lt.count++
	}
	lt.mu.Unlock()
}

// Count returns the number of samples recorded (up to capacity).
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// Percentiles returns p50, p95, p99 latency in milliseconds.
// Returns (0, 0, 0) if no samples have been recorded.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	sorted := lt.unroll()
	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

// unroll copies the recorded samples out of the circular buffer.
func (lt *LatencyTracker) unroll() []float64 {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lt.count == 0 {
		return nil
	}
	out := make([]float64, lt.count)
	if lt.count == len(lt.samples) {
		// Full buffer; oldest sample sits at pos
		n := copy(out, lt.samples[lt.pos:])
		copy(out[n:], lt.samples[:lt.pos])
	} else {
		copy(out, lt.samples[:lt.count])
	}
	return out
}

// percentile computes the p-th percentile (0.0-1.0) of a sorted slice
// with linear interpolation between ranks.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
