package collector

import (
	"time"

	"seatrace/internal/core"
)

// ComputeMetrics computes metrics from events. Pure function, no side effects.
func ComputeMetrics(events []core.Event, testDuration time.Duration) *Metrics {
	m := &Metrics{
		Steps:        make(map[string]*StepMetrics),
		Checks:       make(map[string]*CheckMetrics),
		TestDuration: testDuration,
	}

	if len(events) == 0 {
		return m
	}

	allDurations := make([]time.Duration, 0, len(events))
	stepDurations := make(map[string][]time.Duration)

	for _, e := range events {
		m.TotalRequests++
		if e.Success {
			m.SuccessCount++
		} else {
			m.FailureCount++
		}
		m.BytesSent += e.BytesSent
		m.BytesRecv += e.BytesRecv
		allDurations = append(allDurations, e.Duration)

		step, ok := m.Steps[e.Step]
		if !ok {
			step = &StepMetrics{Statuses: make(map[int]int)}
			m.Steps[e.Step] = step
		}
		step.Count++
		if e.Success {
			step.Success++
		} else {
			step.Failed++
		}
		step.Statuses[e.StatusCode]++
		stepDurations[e.Step] = append(stepDurations[e.Step], e.Duration)

		for _, c := range e.Checks {
			cm, ok := m.Checks[c.Name]
			if !ok {
				cm = &CheckMetrics{}
				m.Checks[c.Name] = cm
			}
			if c.Passed {
				cm.Passes++
				m.ChecksPassed++
			} else {
				cm.Fails++
				m.ChecksFailed++
			}
		}
	}

	m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalRequests) * 100
	if m.TestDuration > 0 {
		m.RequestsPerSec = float64(m.TotalRequests) / m.TestDuration.Seconds()
	}

	m.Duration = ComputeDurationMetrics(allDurations)
	for step, durations := range stepDurations {
		m.Steps[step].Duration = ComputeDurationMetrics(durations)
	}

	return m
}
