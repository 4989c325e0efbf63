package scenario

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"seatrace/internal/booking"
	"seatrace/internal/core"
	"seatrace/internal/credentials"

	"github.com/rs/zerolog"
)

// AuthorizationConfig configures an AuthorizationFlow.
type AuthorizationConfig struct {
	Name     string
	EventID  int64
	PageSize int
	MaxPages int
	// Interleaved sends the intruder's cancel after the owner released the
	// seat instead of sending both intruder calls before any owner cleanup.
	Interleaved bool
}

// AuthorizationFlow checks that only a booking's owner may release its seats
// or cancel it. Actor n pairs owner Assign(2(n-1)) with intruder Assign(2(n-1)+1).
type AuthorizationFlow struct {
	cfg    AuthorizationConfig
	client *booking.Client
	pool   *credentials.Pool
	log    zerolog.Logger
}

// NewAuthorizationFlow creates the authorization workflow.
func NewAuthorizationFlow(cfg AuthorizationConfig, client *booking.Client, pool *credentials.Pool, log zerolog.Logger) *AuthorizationFlow {
	return &AuthorizationFlow{
		cfg:    cfg,
		client: client,
		pool:   pool,
		log:    log.With().Str("scenario", cfg.Name).Logger(),
	}
}

// Run executes one ownership check and records its single outcome.
func (f *AuthorizationFlow) Run(ctx context.Context, actorID int, _ core.Coordinator, rep core.Reporter) error {
	ctx = core.ContextWithScenario(core.ContextWithActorID(ctx, actorID), f.cfg.Name)
	pair := actorID - 1
	owner, intruder := f.pool.Assign(2*pair), f.pool.Assign(2*pair+1)

	o := f.Verify(ctx, owner, intruder, rep)
	if err := ctx.Err(); err != nil {
		return err
	}
	o.Scenario = f.cfg.Name
	o.ActorID = actorID
	rep.Record(o)

	ev := f.log.Debug()
	switch {
	case o.IsViolation():
		ev = f.log.Error().Str("violation", o.Violation)
	case o.Kind == core.OutcomeFailure:
		ev = f.log.Warn().Str("class", string(o.Class))
	}
	ev.Int("actor", actorID).
		Str("owner", owner.Email).
		Str("intruder", intruder.Email).
		Stringer("outcome", o).
		Msg("authorization attempt")
	return nil
}

// Verify books and confirms a free seat as owner, lets intruder try to release
// the seat and cancel the booking, and cleans up as owner. Any intruder call
// the API accepts is an ownership violation; an intruder answer other than
// 403 or a failed owner cleanup is a failure. Success carries the seat.
func (f *AuthorizationFlow) Verify(ctx context.Context, owner, intruder credentials.Identity, rep core.EventSink) core.Outcome {
	seat, failure := f.findFreeSeat(ctx, owner, rep)
	if failure != nil {
		return *failure
	}

	created := f.client.CreateBooking(ctx, owner, f.cfg.EventID)
	rep.Report(created.Event(ctx, check("auth create booking status is 200 or 201", created.OK(http.StatusOK, http.StatusCreated))))
	if !created.OK(http.StatusOK, http.StatusCreated) {
		return callFailure(created)
	}
	bookingID := created.Body.ID

	sel := f.client.SelectSeat(ctx, owner, bookingID, seat.ID)
	rep.Report(sel.Event(ctx, check("auth select seat status is 200", sel.Status == http.StatusOK)))
	if sel.Err != nil || sel.Status != http.StatusOK {
		f.ownerCancel(ctx, owner, bookingID, rep)
		if sel.Status == booking.ConflictStatus {
			return core.Conflict(seat.ID)
		}
		return callFailure(sel)
	}

	list := f.client.ListBookings(ctx, owner)
	own, found := booking.FindBooking(list.Body, bookingID)
	rep.Report(list.Event(ctx,
		check("auth list bookings status is 200", list.Status == http.StatusOK),
		check("auth booking contains selected seat", found && own.HasSeat(seat.ID)),
	))
	if !list.OK(http.StatusOK) {
		f.ownerCancel(ctx, owner, bookingID, rep)
		return callFailure(list)
	}
	if !found || !own.HasSeat(seat.ID) {
		f.ownerCancel(ctx, owner, bookingID, rep)
		return core.Violation(core.ViolationWinnerUnconfirmed,
			"booking %d does not hold seat %d after select returned 200", bookingID, seat.ID)
	}

	var v verdict
	intrudeRelease := func() {
		r := f.client.ReleaseSeat(ctx, intruder, seat.ID)
		rep.Report(r.Event(ctx, check("auth foreign release status is 403", r.Status == http.StatusForbidden)))
		v.intruder(r.Err, r.Status, "%s released seat %d of %s", intruder, seat.ID, owner)
	}
	intrudeCancel := func() {
		r := f.client.CancelBooking(ctx, intruder, bookingID)
		rep.Report(r.Event(ctx, check("auth foreign cancel status is 403", r.Status == http.StatusForbidden)))
		v.intruder(r.Err, r.Status, "%s cancelled booking %d of %s", intruder, bookingID, owner)
	}
	ownRelease := func() {
		r := f.client.ReleaseSeat(ctx, owner, seat.ID)
		rep.Report(r.Event(ctx, check("auth owner release status is 200 or 201", r.OK(http.StatusOK, http.StatusCreated))))
		v.owner(r.OK(http.StatusOK, http.StatusCreated), callFailure(r))
	}
	ownCancel := func() {
		r := f.client.CancelBooking(ctx, owner, bookingID)
		rep.Report(r.Event(ctx, check("auth owner cancel status is 200 or 201", r.OK(http.StatusOK, http.StatusCreated))))
		v.owner(r.OK(http.StatusOK, http.StatusCreated), callFailure(r))
	}

	if f.cfg.Interleaved {
		intrudeRelease()
		ownRelease()
		intrudeCancel()
		ownCancel()
	} else {
		intrudeRelease()
		intrudeCancel()
		ownRelease()
		ownCancel()
	}
	return v.outcome(seat.ID)
}

// verdict folds the calls after confirmation into one outcome. Breaches win
// over failures.
type verdict struct {
	breaches []string
	failure  *core.Outcome
}

func (v *verdict) intruder(err error, status int, format string, args ...any) {
	switch {
	case err != nil:
		v.fail(core.Failure(core.ClassNetwork, "intruder call: %v", err))
	case status >= 200 && status < 300:
		v.breaches = append(v.breaches, fmt.Sprintf(format, args...)+fmt.Sprintf(" with status %d", status))
	case status != http.StatusForbidden:
		v.fail(core.Failure(core.ClassUnexpectedStatus, "intruder call returned %d, want 403", status))
	}
}

func (v *verdict) owner(ok bool, failure core.Outcome) {
	if !ok {
		v.fail(failure)
	}
}

func (v *verdict) fail(o core.Outcome) {
	if v.failure == nil {
		v.failure = &o
	}
}

func (v *verdict) outcome(seatID int64) core.Outcome {
	switch {
	case len(v.breaches) > 0:
		return core.Violation(core.ViolationOwnership, "%s", strings.Join(v.breaches, "; "))
	case v.failure != nil:
		return *v.failure
	}
	return core.Success(seatID)
}

// ownerCancel drops a booking the check could not use.
func (f *AuthorizationFlow) ownerCancel(ctx context.Context, owner credentials.Identity, bookingID int64, rep core.EventSink) {
	r := f.client.CancelBooking(ctx, owner, bookingID)
	rep.Report(r.Event(ctx, check("auth owner cancel status is 200 or 201", r.OK(http.StatusOK, http.StatusCreated))))
}

// findFreeSeat pages through the event's seats until it sees a FREE one. A
// failed listing or an exhausted event is returned as the outcome.
func (f *AuthorizationFlow) findFreeSeat(ctx context.Context, id credentials.Identity, rep core.EventSink) (booking.Seat, *core.Outcome) {
	for page := 1; page <= f.cfg.MaxPages; page++ {
		resp := f.client.ListSeats(ctx, id, booking.SeatQuery{
			EventID:  f.cfg.EventID,
			Page:     page,
			PageSize: f.cfg.PageSize,
		})
		rep.Report(resp.Event(ctx, check("auth list seats status is 200", resp.Status == http.StatusOK)))
		if !resp.OK(http.StatusOK) {
			o := callFailure(resp)
			o.SeatLookup = resp.Err != nil || resp.Status != http.StatusOK
			return booking.Seat{}, &o
		}
		for _, s := range resp.Body {
			if s.Status == booking.StatusFree {
				return s, nil
			}
		}
		if len(resp.Body) == 0 {
			break
		}
	}
	o := core.Failure(core.ClassNoFreeSeats, "no free seat in %d pages of event %d", f.cfg.MaxPages, f.cfg.EventID)
	return booking.Seat{}, &o
}
