package core

import "fmt"

// OutcomeKind tags the variant of an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeConflict
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeConflict:
		return "conflict"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// ErrorClass groups failures by what went wrong.
type ErrorClass string

const (
	ClassNone              ErrorClass = ""
	ClassNetwork           ErrorClass = "network"
	ClassUnexpectedStatus  ErrorClass = "unexpected_status"
	ClassMalformedResponse ErrorClass = "malformed_response"
	ClassNoFreeSeats       ErrorClass = "no_free_seats"
	ClassUnconfirmed       ErrorClass = "unconfirmed"
	ClassProtocolViolation ErrorClass = "protocol_violation"
)

// Outcome is the classified result of one scenario run.
// SeatID is set for Success and Conflict; Reason and Class for Failure.
type Outcome struct {
	Kind     OutcomeKind
	Scenario string
	ActorID  int
	SeatID   int64
	Reason   string
	Class    ErrorClass
	// SeatLookup marks failures caused by the seat listing step.
	SeatLookup bool
	// Violation names the broken invariant when Class is ClassProtocolViolation.
	Violation string
}

// Success builds a Success outcome for the given seat.
func Success(seatID int64) Outcome {
	return Outcome{Kind: OutcomeSuccess, SeatID: seatID}
}

// Conflict builds a Conflict outcome for the given seat.
func Conflict(seatID int64) Outcome {
	return Outcome{Kind: OutcomeConflict, SeatID: seatID}
}

// Failure builds a Failure outcome.
func Failure(class ErrorClass, format string, args ...any) Outcome {
	return Outcome{Kind: OutcomeFailure, Class: class, Reason: fmt.Sprintf(format, args...)}
}

// Violation builds a protocol-violation Failure of the given kind.
func Violation(kind, format string, args ...any) Outcome {
	o := Failure(ClassProtocolViolation, format, args...)
	o.Violation = kind
	return o
}

// IsViolation reports whether the outcome signals a broken booking invariant.
func (o Outcome) IsViolation() bool {
	return o.Kind == OutcomeFailure && o.Class == ClassProtocolViolation
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess, OutcomeConflict:
		return fmt.Sprintf("%s(seat=%d)", o.Kind, o.SeatID)
	default:
		return fmt.Sprintf("%s(%s: %s)", o.Kind, o.Class, o.Reason)
	}
}

// Violation kinds.
const (
	ViolationSelectStatus      = "unexpected_select_status"
	ViolationNoWinner          = "no_winner"
	ViolationMultipleWinners   = "multiple_winners"
	ViolationWinnerUnconfirmed = "winner_unconfirmed"
	ViolationLoserHoldsSeat    = "loser_holds_seat"
	ViolationOwnership         = "ownership"
)

// Verdict classifies a whole conflict trial.
type Verdict string

const (
	VerdictPass         Verdict = "pass"
	VerdictViolation    Verdict = "protocol_violation"
	VerdictInconclusive Verdict = "inconclusive"
)

// TrialVerdict is reported once per conflict trial after classification.
type TrialVerdict struct {
	Scenario   string
	Trial      int
	SeatID     int64
	Verdict    Verdict
	Violations []Breach

	// LookupFailed marks a trial whose shared seat listing failed.
	LookupFailed bool
}

// Breach is one broken invariant observed in a trial.
type Breach struct {
	Kind   string
	Detail string
}

func (b Breach) String() string {
	return b.Kind + ": " + b.Detail
}
