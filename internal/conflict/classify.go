package conflict

import (
	"fmt"
	"net/http"
	"time"

	"seatrace/internal/booking"
	"seatrace/internal/core"
	"seatrace/internal/credentials"
)

// ActorResult is what one contender observed during a trial.
type ActorResult struct {
	Contender int
	Identity  credentials.Identity
	BookingID int64
	Delay     time.Duration

	// Err and ErrClass describe a failure before the select was sent.
	Err      string
	ErrClass core.ErrorClass

	// Reached is set once the select was sent.
	Reached      bool
	SelectStatus int
	SelectErr    string

	// ListErr is set when the confirmation listing was unusable;
	// ListNetwork marks transport-level listing failures.
	ListErr     string
	ListNetwork bool
	Found       bool
	HoldsSeat   bool
	SeatCount   int
}

// Won reports whether the select was accepted.
func (r ActorResult) Won() bool {
	return r.Reached && r.SelectErr == "" && r.SelectStatus == http.StatusOK
}

// Lost reports whether the select was refused because the seat was taken.
func (r ActorResult) Lost() bool {
	return r.Reached && r.SelectErr == "" && r.SelectStatus == booking.ConflictStatus
}

// Outcome classifies the contender's own run. Broken trial invariants are
// reported by the trial verdict, so no contender outcome is a violation.
func (r ActorResult) Outcome(seatID int64) core.Outcome {
	switch {
	case !r.Reached:
		return core.Failure(r.ErrClass, "%s", r.Err)
	case r.SelectErr != "":
		return core.Failure(core.ClassNetwork, "%s", r.SelectErr)
	case r.Lost():
		return core.Conflict(seatID)
	case !r.Won():
		return core.Failure(core.ClassUnexpectedStatus, "select returned %d", r.SelectStatus)
	case r.ListErr != "":
		class := core.ClassUnconfirmed
		if r.ListNetwork {
			class = core.ClassNetwork
		}
		return core.Failure(class, "confirming seat %d: %s", seatID, r.ListErr)
	case !r.HoldsSeat:
		return core.Failure(core.ClassUnconfirmed, "booking %d does not hold seat %d", r.BookingID, seatID)
	default:
		return core.Success(seatID)
	}
}

// TrialResult is the classified record of one conflict trial.
type TrialResult struct {
	Trial      int
	Seat       booking.Seat
	Actors     []ActorResult
	Verdict    core.Verdict
	Violations []core.Breach
	// Reason explains an inconclusive verdict.
	Reason string
	// LookupFailed marks a trial whose shared seat listing failed.
	LookupFailed bool
}

// TrialVerdict converts the result into the record kept by the aggregator.
func (t TrialResult) TrialVerdict(scenario string) core.TrialVerdict {
	return core.TrialVerdict{
		Scenario:     scenario,
		Trial:        t.Trial,
		SeatID:       t.Seat.ID,
		Verdict:      t.Verdict,
		Violations:   t.Violations,
		LookupFailed: t.LookupFailed,
	}
}

// Classify decides a trial from what every contender observed.
//
// A trial passes when exactly one select returned 200 and all others 419,
// the winner's booking holds the seat and no loser's booking holds any seat.
// Any broken invariant makes it a protocol violation. A winner whose
// confirmation listing failed at the transport level is the exception: a
// timeout proves nothing about the booking, so it leaves the trial
// inconclusive instead. Otherwise, a contender that never got a select
// answer makes the trial inconclusive.
func Classify(trial int, seat booking.Seat, actors []ActorResult) TrialResult {
	res := TrialResult{Trial: trial, Seat: seat, Actors: actors}

	var winners []int
	answered := 0
	for _, a := range actors {
		switch {
		case !a.Reached:
			res.Reason = fmt.Sprintf("contender %d did not reach select: %s", a.Contender, a.Err)
			continue
		case a.SelectErr != "":
			res.Reason = fmt.Sprintf("contender %d select failed: %s", a.Contender, a.SelectErr)
			continue
		}
		answered++

		switch {
		case a.Won():
			winners = append(winners, a.Contender)
			switch {
			case a.ListNetwork:
				res.Reason = fmt.Sprintf("winner %d could not be confirmed: %s", a.Contender, a.ListErr)
			case a.ListErr != "":
				res.breach(core.ViolationWinnerUnconfirmed, "winner %d listing failed: %s", a.Contender, a.ListErr)
			case !a.HoldsSeat:
				res.breach(core.ViolationWinnerUnconfirmed, "winner %d booking %d does not hold seat %d", a.Contender, a.BookingID, seat.ID)
			}
		case a.Lost():
			switch {
			case a.ListErr != "":
				res.Reason = fmt.Sprintf("loser %d could not be verified: %s", a.Contender, a.ListErr)
			case a.SeatCount > 0:
				res.breach(core.ViolationLoserHoldsSeat, "loser %d booking %d holds %d seat(s)", a.Contender, a.BookingID, a.SeatCount)
			}
		default:
			res.breach(core.ViolationSelectStatus, "contender %d select returned %d", a.Contender, a.SelectStatus)
		}
	}

	switch {
	case len(winners) > 1:
		res.breach(core.ViolationMultipleWinners, "contenders %v all got 200 for seat %d", winners, seat.ID)
	case len(winners) == 0 && answered == len(actors) && answered > 0:
		res.breach(core.ViolationNoWinner, "no contender got 200 for seat %d", seat.ID)
	}

	switch {
	case len(res.Violations) > 0:
		res.Verdict = core.VerdictViolation
		res.Reason = ""
	case res.Reason != "" || answered < len(actors) || len(actors) == 0:
		res.Verdict = core.VerdictInconclusive
	default:
		res.Verdict = core.VerdictPass
	}
	return res
}

func (t *TrialResult) breach(kind, format string, args ...any) {
	t.Violations = append(t.Violations, core.Breach{Kind: kind, Detail: fmt.Sprintf(format, args...)})
}
