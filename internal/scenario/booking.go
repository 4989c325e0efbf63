// Package scenario implements the per-actor user journeys run against the
// booking API: the booking flow and the authorization flow.
package scenario

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"seatrace/internal/booking"
	"seatrace/internal/core"
	"seatrace/internal/credentials"

	"github.com/rs/zerolog"
)

// ThinkTime is a pause drawn uniformly from [Min, Max) after each iteration.
type ThinkTime struct {
	Min time.Duration
	Max time.Duration
}

// Draw returns the next pause.
func (t ThinkTime) Draw() time.Duration {
	if t.Max <= t.Min {
		return t.Min
	}
	return t.Min + rand.N(t.Max-t.Min)
}

// BookingConfig configures a BookingFlow.
type BookingConfig struct {
	Name         string
	EventID      int64
	PageSize     int
	ConfirmDelay time.Duration
	ThinkTime    ThinkTime
}

// BookingFlow lists free seats, opens a booking, selects the first free seat
// and confirms the selection through the booking listing.
type BookingFlow struct {
	cfg    BookingConfig
	client *booking.Client
	pool   *credentials.Pool
	log    zerolog.Logger
}

// NewBookingFlow creates the booking workflow.
func NewBookingFlow(cfg BookingConfig, client *booking.Client, pool *credentials.Pool, log zerolog.Logger) *BookingFlow {
	return &BookingFlow{
		cfg:    cfg,
		client: client,
		pool:   pool,
		log:    log.With().Str("scenario", cfg.Name).Logger(),
	}
}

// Run executes one booking attempt as actor actorID and records its outcome.
// Actor ids start at 1; actor n logs in as identity n-1.
func (f *BookingFlow) Run(ctx context.Context, actorID int, _ core.Coordinator, rep core.Reporter) error {
	ctx = core.ContextWithScenario(core.ContextWithActorID(ctx, actorID), f.cfg.Name)
	id := f.pool.Assign(actorID - 1)

	o := f.Attempt(ctx, id, rep)
	if err := ctx.Err(); err != nil {
		// Interrupted attempts are not counted.
		return err
	}
	o.Scenario = f.cfg.Name
	o.ActorID = actorID
	rep.Record(o)
	logOutcome(f.log, o, id)

	return core.Sleep(ctx, f.cfg.ThinkTime.Draw())
}

// Attempt runs the flow once for id and classifies the result. Every call is
// reported to rep as an event; the outcome is returned, not recorded.
func (f *BookingFlow) Attempt(ctx context.Context, id credentials.Identity, rep core.EventSink) core.Outcome {
	seats := f.client.ListSeats(ctx, id, booking.SeatQuery{
		EventID:  f.cfg.EventID,
		Status:   booking.StatusFree,
		PageSize: f.cfg.PageSize,
	})
	rep.Report(seats.Event(ctx, freeSeatChecks(seats.Status, seats.Raw, f.cfg.PageSize)...))
	if seats.Err != nil || seats.Status != http.StatusOK {
		o := callFailure(seats)
		o.SeatLookup = true
		return o
	}
	if seats.ParseErr != nil {
		return callFailure(seats)
	}
	if err := checkFreeListing(seats.Body, f.cfg.PageSize); err != nil {
		return core.Failure(core.ClassMalformedResponse, "%s: %v", booking.StepListSeats, err)
	}
	if len(seats.Body) == 0 {
		return core.Failure(core.ClassNoFreeSeats, "no free seats available for event %d", f.cfg.EventID)
	}
	target := seats.Body[0]

	created := f.client.CreateBooking(ctx, id, f.cfg.EventID)
	rep.Report(created.Event(ctx,
		check("create booking status is 201", created.Status == http.StatusCreated),
		check("booking response has id", created.ParseErr == nil && created.Body.ID != 0),
	))
	if !created.OK(http.StatusCreated) {
		return callFailure(created)
	}
	bookingID := created.Body.ID

	sel := f.client.SelectSeat(ctx, id, bookingID, target.ID)
	rep.Report(sel.Event(ctx, check("select seat status is 200", sel.Status == http.StatusOK)))
	switch {
	case sel.Err != nil:
		return callFailure(sel)
	case sel.Status == booking.ConflictStatus:
		return core.Conflict(target.ID)
	case sel.Status != http.StatusOK:
		return callFailure(sel)
	}

	if err := core.Sleep(ctx, f.cfg.ConfirmDelay); err != nil {
		return core.Failure(core.ClassNetwork, "waiting to confirm: %v", err)
	}

	list := f.client.ListBookings(ctx, id)
	own, found := booking.FindBooking(list.Body, bookingID)
	rep.Report(list.Event(ctx,
		check("list bookings status is 200", list.Status == http.StatusOK),
		check("booking contains selected seat", found && own.HasSeat(target.ID)),
		check("booking has correct event_id", found && own.EventID == f.cfg.EventID),
	))
	if !list.OK(http.StatusOK) {
		return callFailure(list)
	}
	if !found || !own.HasSeat(target.ID) {
		return core.Violation(core.ViolationWinnerUnconfirmed,
			"booking %d does not hold seat %d after select returned 200", bookingID, target.ID)
	}
	if own.EventID != f.cfg.EventID {
		return core.Violation(core.ViolationWinnerUnconfirmed,
			"booking %d has event_id %d, want %d", bookingID, own.EventID, f.cfg.EventID)
	}
	return core.Success(target.ID)
}

func logOutcome(log zerolog.Logger, o core.Outcome, id credentials.Identity) {
	ev := log.Debug()
	switch {
	case o.IsViolation():
		ev = log.Error().Str("violation", o.Violation)
	case o.Kind == core.OutcomeFailure:
		ev = log.Warn().Str("class", string(o.Class))
	}
	ev.Int("actor", o.ActorID).
		Str("user", id.Email).
		Stringer("outcome", o).
		Msg("booking attempt")
}
