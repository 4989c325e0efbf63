package metrics

import (
	"seatrace/internal/core"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	descSuccessful = prometheus.NewDesc("successful_bookings",
		"Booking attempts whose seat selection was confirmed.", nil, nil)
	descFailed = prometheus.NewDesc("failed_bookings",
		"Booking attempts that failed for reasons other than a conflict.", nil, nil)
	descConflicted = prometheus.NewDesc("conflict_bookings",
		"Booking attempts rejected because the seat was already taken.", nil, nil)
	descSeatLookups = prometheus.NewDesc("failed_seat_requests",
		"Seat listings that failed.", nil, nil)
	descSuccessRate = prometheus.NewDesc("booking_success_rate",
		"Fraction of booking attempts that succeeded.", nil, nil)
	descViolations = prometheus.NewDesc("protocol_violations_total",
		"Broken booking invariants by kind.", []string{"kind"}, nil)
	descTrials = prometheus.NewDesc("conflict_trials_total",
		"Conflict trials by verdict.", []string{"verdict"}, nil)
)

// Describe implements prometheus.Collector.
func (a *Aggregator) Describe(ch chan<- *prometheus.Desc) {
	ch <- descSuccessful
	ch <- descFailed
	ch <- descConflicted
	ch <- descSeatLookups
	ch <- descSuccessRate
	ch <- descViolations
	ch <- descTrials
}

// Collect implements prometheus.Collector from a fresh snapshot.
func (a *Aggregator) Collect(ch chan<- prometheus.Metric) {
	s := a.Summary()

	ch <- prometheus.MustNewConstMetric(descSuccessful, prometheus.CounterValue, float64(s.Successful))
	ch <- prometheus.MustNewConstMetric(descFailed, prometheus.CounterValue, float64(s.Failed))
	ch <- prometheus.MustNewConstMetric(descConflicted, prometheus.CounterValue, float64(s.Conflicted))
	ch <- prometheus.MustNewConstMetric(descSeatLookups, prometheus.CounterValue, float64(s.FailedSeatLookups))
	ch <- prometheus.MustNewConstMetric(descSuccessRate, prometheus.GaugeValue, s.SuccessRate)

	for kind, n := range s.ViolationsByKind {
		ch <- prometheus.MustNewConstMetric(descViolations, prometheus.CounterValue, float64(n), kind)
	}

	ch <- prometheus.MustNewConstMetric(descTrials, prometheus.CounterValue, float64(s.Trials.Passed), string(core.VerdictPass))
	ch <- prometheus.MustNewConstMetric(descTrials, prometheus.CounterValue, float64(s.Trials.Violated), string(core.VerdictViolation))
	ch <- prometheus.MustNewConstMetric(descTrials, prometheus.CounterValue, float64(s.Trials.Inconclusive), string(core.VerdictInconclusive))
}

// Registry returns a private registry exposing the aggregator, ready for promhttp.
func (a *Aggregator) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(a)
	return reg
}
