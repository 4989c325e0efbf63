package collector

import (
	"slices"
	"time"
)

// Metrics contains aggregated per-call results.
type Metrics struct {
	TotalRequests  int                      `json:"totalRequests"`
	SuccessCount   int                      `json:"successCount"`
	FailureCount   int                      `json:"failureCount"`
	SuccessRate    float64                  `json:"successRate"`
	RequestsPerSec float64                  `json:"requestsPerSec"`
	TestDuration   time.Duration            `json:"testDuration"`
	BytesSent      int64                    `json:"bytesSent"`
	BytesRecv      int64                    `json:"bytesRecv"`
	Duration       DurationMetrics          `json:"durations"`
	Steps          map[string]*StepMetrics  `json:"steps"`
	Checks         map[string]*CheckMetrics `json:"checks"`
	ChecksPassed   int                      `json:"checksPassed"`
	ChecksFailed   int                      `json:"checksFailed"`
}

// DurationMetrics contains latency statistics.
type DurationMetrics struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// StepMetrics contains per-step statistics.
type StepMetrics struct {
	Count    int             `json:"count"`
	Success  int             `json:"success"`
	Failed   int             `json:"failed"`
	Statuses map[int]int     `json:"statuses"`
	Duration DurationMetrics `json:"durations"`
}

// CheckMetrics counts the results of one named check.
type CheckMetrics struct {
	Passes int `json:"passes"`
	Fails  int `json:"fails"`
}

// CheckRate returns the percentage of passed checks, 100 when none ran.
func (m *Metrics) CheckRate() float64 {
	total := m.ChecksPassed + m.ChecksFailed
	if total == 0 {
		return 100
	}
	return float64(m.ChecksPassed) / float64(total) * 100
}

// StepNames returns step names in sorted order.
func (m *Metrics) StepNames() []string {
	return sortedKeys(m.Steps)
}

// CheckNames returns check names in sorted order.
func (m *Metrics) CheckNames() []string {
	return sortedKeys(m.Checks)
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ComputePercentile returns the nearest-rank percentile of a sorted slice.
// p is in [0, 1], e.g. 0.95 for p95.
func ComputePercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}

// ComputeDurationMetrics calculates all duration statistics from a slice of durations.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return DurationMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: total / time.Duration(len(sorted)),
		P50: ComputePercentile(sorted, 0.50),
		P90: ComputePercentile(sorted, 0.90),
		P95: ComputePercentile(sorted, 0.95),
		P99: ComputePercentile(sorted, 0.99),
	}
}
