package booking

import (
	"context"
	"fmt"
	"time"

	"seatrace/internal/core"
)

// Response is the result of one API call.
//
// Err holds transport problems (timeouts, refused connections) and ParseErr
// holds bodies that failed schema validation or decoding. Body is only
// populated for 2xx responses that passed validation.
type Response[T any] struct {
	Step      string
	Status    int
	Body      T
	Raw       []byte
	Latency   time.Duration
	BytesSent int64
	ParseErr  error
	Err       error
}

// OK reports whether the call completed with the given status and a valid body.
func (r Response[T]) OK(status ...int) bool {
	if r.Err != nil || r.ParseErr != nil {
		return false
	}
	for _, s := range status {
		if r.Status == s {
			return true
		}
	}
	return false
}

// Class returns the error class of a failed call, or core.ClassNone.
func (r Response[T]) Class() core.ErrorClass {
	switch {
	case r.Err != nil:
		return core.ClassNetwork
	case r.ParseErr != nil:
		return core.ClassMalformedResponse
	default:
		return core.ClassNone
	}
}

// Describe returns a short reason for a failed call.
func (r Response[T]) Describe() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s: %v", r.Step, r.Err)
	case r.ParseErr != nil:
		return fmt.Sprintf("%s: %v", r.Step, r.ParseErr)
	default:
		return fmt.Sprintf("%s returned %d", r.Step, r.Status)
	}
}

// Event converts the call into a collector event tagged with the actor and
// scenario carried by ctx.
func (r Response[T]) Event(ctx context.Context, checks ...core.Check) core.Event {
	e := core.Event{
		ActorID:    core.ActorIDFromContext(ctx),
		Scenario:   core.ScenarioFromContext(ctx),
		Timestamp:  time.Now(),
		Step:       r.Step,
		Duration:   r.Latency,
		StatusCode: r.Status,
		BytesSent:  r.BytesSent,
		BytesRecv:  int64(len(r.Raw)),
		Checks:     checks,
	}
	switch {
	case r.Err != nil:
		e.Error = r.Err.Error()
	case r.Status >= 400:
		e.Error = fmt.Sprintf("status %d", r.Status)
	case r.ParseErr != nil:
		e.Error = r.ParseErr.Error()
	default:
		e.Success = true
	}
	return e
}
