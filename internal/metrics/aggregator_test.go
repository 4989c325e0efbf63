package metrics

import (
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"seatrace/internal/core"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_RecordOutcomes(t *testing.T) {
	a := NewAggregator()

	a.Record(core.Success(1))
	a.Record(core.Success(2))
	a.Record(core.Conflict(2))
	a.Record(core.Failure(core.ClassUnexpectedStatus, "select returned 500"))

	s := a.Summary()
	assert.Equal(t, int64(2), s.Successful)
	assert.Equal(t, int64(1), s.Conflicted)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(4), s.TotalAttempts)
	assert.Equal(t, int64(4), s.RateSamples)
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)
	assert.True(t, s.Clean())
}

func TestAggregator_SeatLookupFailure(t *testing.T) {
	a := NewAggregator()

	lookup := core.Failure(core.ClassUnexpectedStatus, "listing returned 503")
	lookup.SeatLookup = true
	a.Record(lookup)
	a.RecordSeatLookupFailure()

	s := a.Summary()
	assert.Equal(t, int64(2), s.FailedSeatLookups)
	assert.Equal(t, int64(1), s.Failed, "only the recorded outcome is a failed booking")
}

func TestAggregator_ViolationsKeptApartFromFailures(t *testing.T) {
	a := NewAggregator()

	a.Record(core.Violation(core.ViolationOwnership, "release by stranger returned 200"))

	s := a.Summary()
	assert.Zero(t, s.Failed)
	assert.Equal(t, int64(1), s.Violated)
	assert.Equal(t, int64(1), s.TotalAttempts)
	assert.Equal(t, int64(1), s.RateSamples)
	assert.Zero(t, s.SuccessRate)
	assert.Equal(t, int64(1), s.ProtocolViolations)
	assert.Equal(t, map[string]int64{core.ViolationOwnership: 1}, s.ViolationsByKind)
	assert.False(t, s.Clean())
}

func TestAggregator_UnconfirmedSuccessLowersRate(t *testing.T) {
	a := NewAggregator()

	a.Record(core.Success(1))
	a.Record(core.Violation(core.ViolationWinnerUnconfirmed, "booking 2 does not hold seat 2"))

	s := a.Summary()
	assert.Equal(t, int64(2), s.TotalAttempts)
	assert.Equal(t, int64(2), s.RateSamples)
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)
}

func TestAggregator_RecordTrial(t *testing.T) {
	a := NewAggregator()

	a.RecordTrial(core.TrialVerdict{Verdict: core.VerdictPass})
	a.RecordTrial(core.TrialVerdict{Verdict: core.VerdictInconclusive, LookupFailed: true})
	a.RecordTrial(core.TrialVerdict{
		Verdict: core.VerdictViolation,
		Violations: []core.Breach{
			{Kind: core.ViolationMultipleWinners, Detail: "2 actors got 200"},
			{Kind: core.ViolationLoserHoldsSeat, Detail: "actor 3 booking holds seat 42"},
		},
	})

	s := a.Summary()
	assert.Equal(t, TrialCounts{Total: 3, Passed: 1, Violated: 1, Inconclusive: 1}, s.Trials)
	assert.Equal(t, int64(1), s.FailedSeatLookups)
	assert.Zero(t, s.Failed)
	assert.Equal(t, int64(2), s.ProtocolViolations)
	assert.Equal(t, []string{core.ViolationLoserHoldsSeat, core.ViolationMultipleWinners}, s.ViolationKinds())
}

func TestAggregator_EmptySuccessRate(t *testing.T) {
	assert.Zero(t, NewAggregator().SuccessRate())
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	a := NewAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				switch j % 3 {
				case 0:
					a.Record(core.Success(int64(i)))
				case 1:
					a.Record(core.Conflict(int64(i)))
				default:
					a.RecordViolation(core.ViolationNoWinner)
				}
			}
		}(i)
	}
	wg.Wait()

	s := a.Summary()
	assert.Equal(t, int64(50*34), s.Successful)
	assert.Equal(t, int64(50*33), s.Conflicted)
	assert.Equal(t, int64(50*33), s.ProtocolViolations)
	assert.Equal(t, s.Successful+s.Conflicted, s.RateSamples)
}

func TestAggregator_PrometheusExport(t *testing.T) {
	a := NewAggregator()
	a.Record(core.Success(1))
	a.Record(core.Conflict(1))
	a.RecordTrial(core.TrialVerdict{
		Verdict:    core.VerdictViolation,
		Violations: []core.Breach{{Kind: core.ViolationNoWinner}},
	})

	srv := httptest.NewServer(promhttp.HandlerFor(a.Registry(), promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "successful_bookings 1")
	assert.Contains(t, text, "conflict_bookings 1")
	assert.Contains(t, text, "failed_bookings 0")
	assert.Contains(t, text, "booking_success_rate 0.5")
	assert.Contains(t, text, `protocol_violations_total{kind="no_winner"} 1`)
	assert.Contains(t, text, `conflict_trials_total{verdict="protocol_violation"} 1`)
	assert.Contains(t, text, `conflict_trials_total{verdict="pass"} 0`)
}
