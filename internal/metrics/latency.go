// Package metrics records simulation progress and ledger call latency.
package metrics

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/gateway-fm/jointsim/pkg/types"
)

// DefaultReservoirSize bounds the samples kept for percentile estimation.
const DefaultReservoirSize = 4096

// latencyBuckets are upper bounds in milliseconds; the last bucket is open-ended.
// Development chains confirm in milliseconds, so the low end is fine grained.
var latencyBuckets = []struct {
	upper float64
	label string
}{
	{10, "0-10ms"},
	{50, "10-50ms"},
	{250, "50-250ms"},
	{1000, "250ms-1s"},
	{5000, "1-5s"},
	{0, "5s+"},
}

// LatencyStats summarizes ledger call latency. Percentiles come from a
// uniform reservoir sample (Vitter's Algorithm R) so memory stays bounded
// on long runs.
type LatencyStats struct {
	mu       sync.Mutex
	count    int
	sum      float64
	min, max float64
	buckets  []int

	reservoir []float64
	capacity  int
	rng       *rand.Rand
}

// NewLatencyStats creates an empty latency tracker.
func NewLatencyStats() *LatencyStats {
	return newLatencyStats(DefaultReservoirSize)
}

func newLatencyStats(capacity int) *LatencyStats {
	return &LatencyStats{
		buckets:   make([]int, len(latencyBuckets)),
		reservoir: make([]float64, 0, capacity),
		capacity:  capacity,
		rng:       rand.New(rand.NewPCG(0x9e3779b97f4a7c15, uint64(capacity))),
	}
}

// Add records one call duration in milliseconds.
func (s *LatencyStats) Add(ms float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
	s.count++
	s.sum += ms
	s.buckets[bucketFor(ms)]++

	if len(s.reservoir) < s.capacity {
		s.reservoir = append(s.reservoir, ms)
	} else if j := s.rng.IntN(s.count); j < s.capacity {
		s.reservoir[j] = ms
	}
}

func bucketFor(ms float64) int {
	last := len(latencyBuckets) - 1
	for i, b := range latencyBuckets[:last] {
		if ms < b.upper {
			return i
		}
	}
	return last
}

// Snapshot returns the current statistics, or nil before the first call.
func (s *LatencyStats) Snapshot() *types.LatencyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return nil
	}

	sorted := slices.Clone(s.reservoir)
	slices.Sort(sorted)

	out := &types.LatencyStats{
		Count:   s.count,
		Min:     s.min,
		Max:     s.max,
		Avg:     s.sum / float64(s.count),
		P50:     quantile(sorted, 0.50),
		P90:     quantile(sorted, 0.90),
		P99:     quantile(sorted, 0.99),
		Buckets: make([]types.LatencyBucket, len(latencyBuckets)),
	}
	for i, b := range latencyBuckets {
		out.Buckets[i] = types.LatencyBucket{Label: b.label, Count: s.buckets[i]}
	}
	return out
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	pos := q * float64(n-1)
	i := int(pos)
	if i >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(i)
	return sorted[i] + (sorted[i+1]-sorted[i])*frac
}
