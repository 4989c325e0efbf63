package collector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"seatrace/internal/metrics"
)

// Thresholds defines pass/fail criteria for a run.
type Thresholds struct {
	HTTPReqDuration    *DurationThresholds `yaml:"http_req_duration"`
	HTTPReqFailed      *FailureThresholds  `yaml:"http_req_failed"`
	Checks             *RateThreshold      `yaml:"checks"`
	BookingSuccessRate *RateThreshold      `yaml:"booking_success_rate"`
	ProtocolViolations *CountThreshold     `yaml:"protocol_violations"`
}

// DurationThresholds defines latency limits.
type DurationThresholds struct {
	Avg time.Duration `yaml:"avg"`
	P50 time.Duration `yaml:"p50"`
	P90 time.Duration `yaml:"p90"`
	P95 time.Duration `yaml:"p95"`
	P99 time.Duration `yaml:"p99"`
}

// FailureThresholds defines error rate limits.
type FailureThresholds struct {
	Rate string `yaml:"rate"`
}

// RateThreshold is a lower bound on a rate, written "95%" or "0.95".
type RateThreshold struct {
	Min string `yaml:"min"`
}

// CountThreshold is an upper bound on a counter.
type CountThreshold struct {
	Max int64 `yaml:"max"`
}

// ThresholdResult represents the outcome of a single threshold check.
type ThresholdResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Op        string `json:"op"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
}

// ThresholdResults contains all threshold check results.
type ThresholdResults struct {
	Passed  bool              `json:"passed"`
	Results []ThresholdResult `json:"results"`
}

// Check evaluates all thresholds against per-call metrics and the outcome
// summary. A nil summary skips the outcome-based thresholds.
func (t *Thresholds) Check(m *Metrics, s *metrics.Summary) *ThresholdResults {
	if t == nil {
		return &ThresholdResults{Passed: true, Results: nil}
	}

	results := &ThresholdResults{
		Passed:  true,
		Results: make([]ThresholdResult, 0),
	}

	if t.HTTPReqDuration != nil {
		results.checkDurationThresholds(t.HTTPReqDuration, &m.Duration)
	}
	if t.HTTPReqFailed != nil && t.HTTPReqFailed.Rate != "" {
		results.checkFailureRate(t.HTTPReqFailed, m)
	}
	if t.Checks != nil && t.Checks.Min != "" {
		results.checkMinRate("checks.rate", t.Checks.Min, m.CheckRate())
	}
	if s != nil {
		if t.BookingSuccessRate != nil && t.BookingSuccessRate.Min != "" {
			results.checkMinRate("booking_success_rate", t.BookingSuccessRate.Min, s.SuccessRate*100)
		}
		if t.ProtocolViolations != nil {
			results.add(ThresholdResult{
				Name:      "protocol_violations.count",
				Passed:    s.ProtocolViolations <= t.ProtocolViolations.Max,
				Op:        "<=",
				Threshold: strconv.FormatInt(t.ProtocolViolations.Max, 10),
				Actual:    strconv.FormatInt(s.ProtocolViolations, 10),
			})
		}
	}

	return results
}

func (r *ThresholdResults) add(result ThresholdResult) {
	if !result.Passed {
		r.Passed = false
	}
	r.Results = append(r.Results, result)
}

func (r *ThresholdResults) checkDurationThresholds(thresholds *DurationThresholds, actual *DurationMetrics) {
	checks := []struct {
		name      string
		threshold time.Duration
		actual    time.Duration
	}{
		{"http_req_duration.avg", thresholds.Avg, actual.Avg},
		{"http_req_duration.p50", thresholds.P50, actual.P50},
		{"http_req_duration.p90", thresholds.P90, actual.P90},
		{"http_req_duration.p95", thresholds.P95, actual.P95},
		{"http_req_duration.p99", thresholds.P99, actual.P99},
	}

	for _, check := range checks {
		if check.threshold == 0 {
			continue
		}
		r.add(ThresholdResult{
			Name:      check.name,
			Passed:    check.actual < check.threshold,
			Op:        "<",
			Threshold: FormatDuration(check.threshold),
			Actual:    FormatDuration(check.actual),
		})
	}
}

func (r *ThresholdResults) checkFailureRate(thresholds *FailureThresholds, m *Metrics) {
	limit, err := parseRate(thresholds.Rate)
	if err != nil {
		r.add(ThresholdResult{Name: "http_req_failed.rate", Op: "<", Threshold: thresholds.Rate, Actual: err.Error()})
		return
	}

	actual := 0.0
	if m.TotalRequests > 0 {
		actual = 100.0 - m.SuccessRate
	}
	r.add(ThresholdResult{
		Name:      "http_req_failed.rate",
		Passed:    actual < limit,
		Op:        "<",
		Threshold: thresholds.Rate,
		Actual:    fmt.Sprintf("%.2f%%", actual),
	})
}

func (r *ThresholdResults) checkMinRate(name, threshold string, actual float64) {
	limit, err := parseRate(threshold)
	if err != nil {
		r.add(ThresholdResult{Name: name, Op: ">=", Threshold: threshold, Actual: err.Error()})
		return
	}
	r.add(ThresholdResult{
		Name:      name,
		Passed:    actual >= limit,
		Op:        ">=",
		Threshold: threshold,
		Actual:    fmt.Sprintf("%.2f%%", actual),
	})
}

// parseRate returns a percentage from "5%" or from a fraction such as "0.05".
func parseRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		return strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("invalid rate %q", s)
	}
	return f * 100, nil
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// Violations returns only the failed threshold results.
func (r *ThresholdResults) Violations() []ThresholdResult {
	violations := make([]ThresholdResult, 0)
	for _, result := range r.Results {
		if !result.Passed {
			violations = append(violations, result)
		}
	}
	return violations
}
