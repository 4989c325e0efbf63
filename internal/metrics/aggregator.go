// Package metrics folds classified scenario outcomes and conflict trial
// verdicts into run-wide counters.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"seatrace/internal/core"
)

// Aggregator is safe for concurrent use by every actor of a run.
// Counters only grow; they are read once at teardown through Summary.
type Aggregator struct {
	successful  atomic.Int64
	failed      atomic.Int64
	conflicted  atomic.Int64
	violated    atomic.Int64
	seatLookups atomic.Int64

	ratePassed atomic.Int64
	rateTotal  atomic.Int64

	trialsPassed       atomic.Int64
	trialsViolated     atomic.Int64
	trialsInconclusive atomic.Int64

	mu         sync.Mutex
	violations map[string]int64

	startTime time.Time
}

// NewAggregator creates an empty Aggregator. The run clock starts now.
func NewAggregator() *Aggregator {
	return &Aggregator{
		violations: make(map[string]int64),
		startTime:  time.Now(),
	}
}

// Record folds one scenario outcome into the counters.
//
// Every outcome is one attempt and one success-rate sample, true only for
// Success. Ordinary failures count as failed bookings; protocol violations
// are counted apart from them.
func (a *Aggregator) Record(o core.Outcome) {
	switch o.Kind {
	case core.OutcomeSuccess:
		a.successful.Add(1)
		a.sample(true)
	case core.OutcomeConflict:
		a.conflicted.Add(1)
		a.sample(false)
	case core.OutcomeFailure:
		switch {
		case o.IsViolation():
			a.RecordViolation(o.Violation)
			a.violated.Add(1)
		case o.SeatLookup:
			a.seatLookups.Add(1)
			a.failed.Add(1)
		default:
			a.failed.Add(1)
		}
		a.sample(false)
	}
}

// RecordTrial folds one conflict trial verdict into the counters.
func (a *Aggregator) RecordTrial(v core.TrialVerdict) {
	if v.LookupFailed {
		a.RecordSeatLookupFailure()
	}
	switch v.Verdict {
	case core.VerdictPass:
		a.trialsPassed.Add(1)
	case core.VerdictViolation:
		a.trialsViolated.Add(1)
		for _, b := range v.Violations {
			a.RecordViolation(b.Kind)
		}
	default:
		a.trialsInconclusive.Add(1)
	}
}

// RecordSeatLookupFailure counts a failed seat listing that produced no
// scenario outcome of its own (a conflict trial that never started).
func (a *Aggregator) RecordSeatLookupFailure() {
	a.seatLookups.Add(1)
}

// RecordViolation counts one broken invariant of the given kind.
func (a *Aggregator) RecordViolation(kind string) {
	if kind == "" {
		kind = "unspecified"
	}
	a.mu.Lock()
	a.violations[kind]++
	a.mu.Unlock()
}

func (a *Aggregator) sample(passed bool) {
	if passed {
		a.ratePassed.Add(1)
	}
	a.rateTotal.Add(1)
}

// SuccessRate returns the fraction of true samples, 0 when there are none.
func (a *Aggregator) SuccessRate() float64 {
	total := a.rateTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(a.ratePassed.Load()) / float64(total)
}

// ViolationsByKind returns a copy of the per-kind violation counts.
func (a *Aggregator) ViolationsByKind() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int64, len(a.violations))
	for k, v := range a.violations {
		out[k] = v
	}
	return out
}

func (a *Aggregator) violationTotal() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, v := range a.violations {
		total += v
	}
	return total
}

// Summary snapshots the counters.
func (a *Aggregator) Summary() Summary {
	s := Summary{
		StartTime:          a.startTime,
		Duration:           time.Since(a.startTime),
		Successful:         a.successful.Load(),
		Failed:             a.failed.Load(),
		Conflicted:         a.conflicted.Load(),
		Violated:           a.violated.Load(),
		FailedSeatLookups:  a.seatLookups.Load(),
		ProtocolViolations: a.violationTotal(),
		ViolationsByKind:   a.ViolationsByKind(),
		SuccessRate:        a.SuccessRate(),
		RateSamples:        a.rateTotal.Load(),
		Trials: TrialCounts{
			Passed:       a.trialsPassed.Load(),
			Violated:     a.trialsViolated.Load(),
			Inconclusive: a.trialsInconclusive.Load(),
		},
	}
	s.Trials.Total = s.Trials.Passed + s.Trials.Violated + s.Trials.Inconclusive
	s.TotalAttempts = s.Successful + s.Conflicted + s.Failed + s.Violated
	return s
}

// Summary is the run-wide outcome report built once at teardown.
type Summary struct {
	StartTime          time.Time        `json:"startTime"`
	Duration           time.Duration    `json:"-"`
	Successful         int64            `json:"successfulBookings"`
	Failed             int64            `json:"failedBookings"`
	Conflicted         int64            `json:"conflictBookings"`
	Violated           int64            `json:"violatedBookings"`
	FailedSeatLookups  int64            `json:"failedSeatRequests"`
	ProtocolViolations int64            `json:"protocolViolations"`
	ViolationsByKind   map[string]int64 `json:"violationsByKind,omitempty"`
	SuccessRate        float64          `json:"bookingSuccessRate"`
	RateSamples        int64            `json:"rateSamples"`
	TotalAttempts      int64            `json:"totalAttempts"`
	Trials             TrialCounts      `json:"trials"`
}

// TrialCounts tallies conflict trials by verdict.
type TrialCounts struct {
	Total        int64 `json:"total"`
	Passed       int64 `json:"passed"`
	Violated     int64 `json:"violated"`
	Inconclusive int64 `json:"inconclusive"`
}

// Clean reports whether no protocol violation was observed.
func (s Summary) Clean() bool {
	return s.ProtocolViolations == 0
}

// ViolationKinds returns the observed violation kinds in sorted order.
func (s Summary) ViolationKinds() []string {
	kinds := make([]string, 0, len(s.ViolationsByKind))
	for k := range s.ViolationsByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
