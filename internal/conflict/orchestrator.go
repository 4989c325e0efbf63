// Package conflict races several actors for one seat and checks that the
// booking API lets exactly one of them win.
package conflict

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"seatrace/internal/booking"
	"seatrace/internal/core"
	"seatrace/internal/credentials"

	"github.com/rs/zerolog"
)

// Config configures an Orchestrator.
type Config struct {
	Name         string
	EventID      int64
	Row          int
	PageSize     int
	Contenders   int
	ConfirmDelay time.Duration
	Jitter       Distribution
	// Claims is shared by every orchestrator racing in the same row. Nil
	// gives the orchestrator a private set.
	Claims *SeatClaims
}

// Orchestrator runs conflict trials. As a core.Workflow every run is one
// trial; trial numbers are shared by all actors of the scenario.
type Orchestrator struct {
	cfg    Config
	client *booking.Client
	pool   *credentials.Pool
	log    zerolog.Logger
	next   atomic.Int64
}

// NewOrchestrator creates an orchestrator. Contenders below 2 are raised to 2.
func NewOrchestrator(cfg Config, client *booking.Client, pool *credentials.Pool, log zerolog.Logger) *Orchestrator {
	if cfg.Contenders < 2 {
		cfg.Contenders = 2
	}
	if cfg.Jitter == nil {
		cfg.Jitter = None{}
	}
	if cfg.Claims == nil {
		cfg.Claims = NewSeatClaims()
	}
	return &Orchestrator{
		cfg:    cfg,
		client: client,
		pool:   pool,
		log:    log.With().Str("scenario", cfg.Name).Logger(),
	}
}

// Run executes the next trial and records one outcome per contender plus the
// trial verdict.
func (o *Orchestrator) Run(ctx context.Context, actorID int, _ core.Coordinator, rep core.Reporter) error {
	ctx = core.ContextWithScenario(core.ContextWithActorID(ctx, actorID), o.cfg.Name)
	trial := int(o.next.Add(1) - 1)

	res := o.RunTrial(ctx, trial, rep)
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, a := range res.Actors {
		out := a.Outcome(res.Seat.ID)
		out.Scenario = o.cfg.Name
		out.ActorID = actorID
		rep.Record(out)
	}
	rep.RecordTrial(res.TrialVerdict(o.cfg.Name))
	o.logTrial(res)
	return nil
}

// RunTrial lists the free seats of the configured row, claims the first one
// no concurrent trial holds and lets every contender book and select it. Contender j of trial
// t logs in as identity t*K+j. Calls are reported to rep; nothing is recorded.
func (o *Orchestrator) RunTrial(ctx context.Context, trial int, rep core.EventSink) TrialResult {
	k := o.cfg.Contenders
	seats := o.client.ListSeats(ctx, o.pool.Assign(trial*k), booking.SeatQuery{
		EventID:  o.cfg.EventID,
		Status:   booking.StatusFree,
		Row:      o.cfg.Row,
		Page:     1,
		PageSize: o.cfg.PageSize,
	})
	rep.Report(seats.Event(ctx, check("conflict test get free seats status is 200", seats.Status == http.StatusOK)))
	if !seats.OK(http.StatusOK) {
		return TrialResult{
			Trial:        trial,
			Verdict:      core.VerdictInconclusive,
			Reason:       seats.Describe(),
			LookupFailed: true,
		}
	}
	if len(seats.Body) == 0 {
		return TrialResult{
			Trial:   trial,
			Verdict: core.VerdictInconclusive,
			Reason:  "no free seats in the contested row",
		}
	}
	seat, ok := o.cfg.Claims.Claim(seats.Body)
	if !ok {
		return TrialResult{
			Trial:   trial,
			Verdict: core.VerdictInconclusive,
			Reason:  "every free seat in the contested row is claimed by a running trial",
		}
	}

	actors := make([]ActorResult, k)
	var wg sync.WaitGroup
	for j := 0; j < k; j++ {
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			actors[j] = o.contend(ctx, o.pool.Assign(trial*k+j), j, seat.ID, rep)
		}(j)
	}
	wg.Wait()

	reached := false
	for _, a := range actors {
		reached = reached || a.Reached
	}
	if !reached {
		o.cfg.Claims.Return(seat.ID)
	}
	return Classify(trial, seat, actors)
}

// contend is one contender's path: create, wait, select, wait, confirm.
func (o *Orchestrator) contend(ctx context.Context, id credentials.Identity, j int, seatID int64, rep core.EventSink) ActorResult {
	r := ActorResult{Contender: j, Identity: id}

	created := o.client.CreateBooking(ctx, id, o.cfg.EventID)
	rep.Report(created.Event(ctx, check("conflict test create booking status is 201", created.Status == http.StatusCreated)))
	if !created.OK(http.StatusCreated) {
		r.Err, r.ErrClass = created.Describe(), classOf(created.Class())
		return r
	}
	r.BookingID = created.Body.ID

	r.Delay = o.cfg.Jitter.Draw()
	if err := core.Sleep(ctx, r.Delay); err != nil {
		r.Err, r.ErrClass = err.Error(), core.ClassNetwork
		return r
	}

	sel := o.client.SelectSeat(ctx, id, r.BookingID, seatID)
	r.Reached = true
	r.SelectStatus = sel.Status
	if sel.Err != nil {
		r.SelectErr = sel.Err.Error()
	}
	selChecks := []core.Check{
		check("conflict test seat response is valid", sel.Err == nil && (r.Won() || r.Lost())),
	}
	if r.Won() {
		selChecks = append(selChecks, check("conflict test winner gets seat", true))
	} else if sel.Err == nil {
		selChecks = append(selChecks, check("conflict test loser gets 419 status", r.Lost()))
	}
	rep.Report(sel.Event(ctx, selChecks...))
	if sel.Err != nil {
		return r
	}

	if err := core.Sleep(ctx, o.cfg.ConfirmDelay); err != nil {
		r.ListErr, r.ListNetwork = err.Error(), true
		return r
	}

	list := o.client.ListBookings(ctx, id)
	switch {
	case list.Err != nil:
		r.ListErr, r.ListNetwork = list.Err.Error(), true
	case !list.OK(http.StatusOK):
		r.ListErr = list.Describe()
	default:
		own, found := booking.FindBooking(list.Body, r.BookingID)
		r.Found = found
		r.HoldsSeat = found && own.HasSeat(seatID)
		r.SeatCount = len(own.Seats)
	}

	if r.Won() {
		rep.Report(list.Event(ctx,
			check("conflict test list bookings status is 200", list.Status == http.StatusOK),
			check("conflict test booking is confirmed", r.HoldsSeat),
		))
	} else {
		rep.Report(list.Event(ctx,
			check("conflict test loser list bookings status is 200", list.Status == http.StatusOK),
			check("conflict test loser booking has no seats", r.ListErr == "" && r.SeatCount == 0),
		))
	}
	return r
}

func (o *Orchestrator) logTrial(res TrialResult) {
	switch res.Verdict {
	case core.VerdictViolation:
		arr := zerolog.Arr()
		for _, b := range res.Violations {
			arr.Str(b.String())
		}
		o.log.Error().Int("trial", res.Trial).Int64("seat", res.Seat.ID).
			Array("violations", arr).Msg("protocol violation")
	case core.VerdictInconclusive:
		o.log.Warn().Int("trial", res.Trial).Int64("seat", res.Seat.ID).
			Str("reason", res.Reason).Msg("trial inconclusive")
	default:
		o.log.Debug().Int("trial", res.Trial).Int64("seat", res.Seat.ID).Msg("trial passed")
	}
}

func check(name string, passed bool) core.Check {
	return core.Check{Name: name, Passed: passed}
}

func classOf(c core.ErrorClass) core.ErrorClass {
	if c == core.ClassNone {
		return core.ClassUnexpectedStatus
	}
	return c
}
