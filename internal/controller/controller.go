// Package controller runs a configured harness: one system reset, then every
// scenario concurrently from its start offset, then the teardown report.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatrace/internal/booking"
	"seatrace/internal/collector"
	"seatrace/internal/config"
	"seatrace/internal/conflict"
	"seatrace/internal/coordinator"
	"seatrace/internal/core"
	"seatrace/internal/credentials"
	"seatrace/internal/metrics"
	"seatrace/internal/ratelimit"
	"seatrace/internal/scenario"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	ExitSuccess = 0
	ExitFailed  = 1 // thresholds failed or protocol violations detected
	ExitError   = 2
)

// ErrIdentities is returned when the pool cannot give a scenario the
// distinct users it needs.
var ErrIdentities = errors.New("not enough distinct identities")

// Controller owns the shared run state: identities, the booking client, the
// collector and the aggregator.
type Controller struct {
	cfg       *config.Config
	log       zerolog.Logger
	pool      *credentials.Pool
	limiter   *ratelimit.RateLimiter
	debug     *booking.DebugLogger
	client    *booking.Client
	collector *collector.Collector
	agg       *metrics.Aggregator
	claims    *conflict.SeatClaims
	runs      []scenarioRun
}

// scenarioRun is a configured scenario with its workflow. limiter is set
// only for ramps whose stages drive their own request rate.
type scenarioRun struct {
	scenario *config.Scenario
	workflow core.Workflow
	limiter  *ratelimit.RateLimiter
}

// New loads identities and builds one workflow per scenario. debug may be nil.
func New(cfg *config.Config, log zerolog.Logger, debug *booking.DebugLogger) (*Controller, error) {
	ids, err := cfg.LoadIdentities()
	if err != nil {
		return nil, err
	}
	pool, err := credentials.New(ids)
	if err != nil {
		return nil, fmt.Errorf("building credential pool: %w", err)
	}

	c := &Controller{
		cfg:       cfg,
		log:       log,
		pool:      pool,
		limiter:   ratelimit.NewRateLimiter(cfg.Target.RPS),
		debug:     debug,
		collector: collector.NewCollector(),
		agg:       metrics.NewAggregator(),
		claims:    conflict.NewSeatClaims(),
	}
	c.client = c.newClient(c.limiter)

	var errs []error
	for i := range cfg.Scenarios {
		s := &cfg.Scenarios[i]
		client := c.client
		limiter := stageLimiter(s)
		if limiter != nil {
			client = c.newClient(limiter)
		}
		wf, err := c.workflow(s, client)
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", s.Name, err))
			continue
		}
		c.runs = append(c.runs, scenarioRun{scenario: s, workflow: wf, limiter: limiter})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) Collector() *collector.Collector { return c.collector }

func (c *Controller) Aggregator() *metrics.Aggregator { return c.agg }

func (c *Controller) newClient(limiter *ratelimit.RateLimiter) *booking.Client {
	return booking.NewClient(booking.Options{
		BaseURL:   c.cfg.Target.BaseURL,
		Timeout:   c.cfg.Target.Timeout,
		UserAgent: c.cfg.Target.UserAgent,
		Token:     c.cfg.Target.BasicAuth,
		Limiter:   limiter,
		Debug:     c.debug,
	})
}

// stageLimiter returns a dedicated limiter for a ramp whose stages set their
// own rate, or nil when the ramp runs under the target-wide limiter.
func stageLimiter(s *config.Scenario) *ratelimit.RateLimiter {
	for _, st := range s.Stages {
		if st.RPS > 0 {
			return ratelimit.NewRateLimiter(s.Stages[0].RPS)
		}
	}
	return nil
}

func (c *Controller) workflow(s *config.Scenario, client *booking.Client) (core.Workflow, error) {
	switch s.Kind {
	case config.KindBooking:
		return scenario.NewBookingFlow(scenario.BookingConfig{
			Name:         s.Name,
			EventID:      c.cfg.EventID,
			PageSize:     s.PageSize,
			ConfirmDelay: s.ConfirmDelay,
			ThinkTime:    scenario.ThinkTime{Min: s.ThinkTime.Min, Max: s.ThinkTime.Max},
		}, client, c.pool, c.log), nil

	case config.KindConflict:
		if !c.pool.Distinct(s.Contenders) {
			return nil, fmt.Errorf("%w: %d contenders need %d different users, pool has %d",
				ErrIdentities, s.Contenders, s.Contenders, c.pool.Size())
		}
		jitter, err := conflict.NewDistribution(s.Jitter.Kind, s.Jitter.Min, s.Jitter.Max)
		if err != nil {
			return nil, err
		}
		return conflict.NewOrchestrator(conflict.Config{
			Name:         s.Name,
			EventID:      c.cfg.EventID,
			Row:          s.Row,
			PageSize:     s.PageSize,
			Contenders:   s.Contenders,
			ConfirmDelay: s.ConfirmDelay,
			Jitter:       jitter,
			Claims:       c.claims,
		}, client, c.pool, c.log), nil

	case config.KindAuthorization:
		if !c.pool.Distinct(2) {
			return nil, fmt.Errorf("%w: owner and intruder need 2 different users, pool has %d",
				ErrIdentities, c.pool.Size())
		}
		return scenario.NewAuthorizationFlow(scenario.AuthorizationConfig{
			Name:        s.Name,
			EventID:     c.cfg.EventID,
			PageSize:    s.PageSize,
			MaxPages:    s.MaxPages,
			Interleaved: s.Order == config.OrderInterleaved,
		}, client, c.pool, c.log), nil
	}
	return nil, fmt.Errorf("unknown kind %q", s.Kind)
}

// Result is everything the teardown produced.
type Result struct {
	Metrics     *collector.Metrics
	Summary     metrics.Summary
	Thresholds  *collector.ThresholdResults
	Verdict     collector.Verdict
	Interrupted bool
}

// ExitCode maps the result to the process exit status. Violations fail an
// interrupted run too; thresholds are only judged on complete runs.
func (r *Result) ExitCode() int {
	if !r.Summary.Clean() {
		return ExitFailed
	}
	if r.Interrupted {
		return ExitSuccess
	}
	if r.Thresholds != nil && !r.Thresholds.Passed {
		return ExitFailed
	}
	return ExitSuccess
}

// Run resets the target unless configured otherwise, runs all scenarios and
// tears down. Cancelling ctx stops the scenarios early and still produces a
// Result.
func (c *Controller) Run(ctx context.Context) *Result {
	if !c.cfg.Reset.Skip {
		// Reset failures are already logged; the run continues regardless.
		_ = Reset(ctx, c.cfg.Target, c.cfg.Reset.Timeout, c.log, c.collector)
		if err := core.Sleep(ctx, c.cfg.Reset.Settle); err != nil {
			return c.teardown(true)
		}
	}

	c.setup()

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range c.runs {
		g.Go(func() error {
			c.runScenario(gctx, run)
			return nil
		})
	}
	_ = g.Wait() // scenarios fold every failure into outcomes

	return c.teardown(ctx.Err() != nil)
}

func (c *Controller) setup() {
	c.log.Info().
		Int("users", c.pool.Size()).
		Int("scenarios", len(c.cfg.Scenarios)).
		Int64("event", c.cfg.EventID).
		Msg("starting booking harness")
	for i := range c.cfg.Scenarios {
		s := &c.cfg.Scenarios[i]
		ev := c.log.Info().Str("scenario", s.Name).Str("kind", string(s.Kind))
		if n := s.Attempts(); n > 0 {
			ev.Msgf("%d total booking attempts", n)
			continue
		}
		if s.Ramped() {
			ev.Int("stages", len(s.Stages)).Dur("duration", config.TotalDuration(s.Stages)).Msg("staged ramp")
			continue
		}
		ev.Int("actors", s.Actors).Dur("maxDuration", s.MaxDuration).Msg("running until maxDuration")
	}
}

func (c *Controller) runScenario(ctx context.Context, run scenarioRun) {
	s := run.scenario
	log := c.log.With().Str("scenario", s.Name).Logger()
	if err := core.Sleep(ctx, s.StartTime); err != nil {
		log.Warn().Msg("scenario skipped, run stopped before its start time")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.MaxDuration)
	defer cancel()

	started := time.Now()
	coord := coordinator.NewCoordinator(core.Pipe{Events: c.collector, Outcomes: c.agg}, log)
	runnerCfg := core.RunnerConfig{
		MaxIterations: s.Iterations,
		WarmupIters:   c.cfg.Execution.WarmupIterations,
	}

	if s.Ramped() {
		coord.RunStages(ctx, s.Stages, run.workflow, run.limiter, runnerCfg)
	} else {
		log.Info().Int("actors", s.Actors).Int("iterations", s.Iterations).Msg("scenario started")
		coord.SpawnWithConfig(ctx, s.Actors, run.workflow, runnerCfg)
	}
	coord.Wait()

	ev := log.Info()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ev = log.Warn().Dur("maxDuration", s.MaxDuration)
	}
	ev.Dur("elapsed", time.Since(started)).Msg("scenario finished")
}

// teardown closes the collector and builds the report inputs. Thresholds
// are skipped for interrupted runs.
func (c *Controller) teardown(interrupted bool) *Result {
	c.collector.Close()
	if dropped := c.collector.DroppedEvents(); dropped > 0 {
		c.log.Warn().Int64("dropped", dropped).Msg("collector buffer was full, some events were not recorded")
	}

	r := &Result{
		Metrics:     c.collector.Compute(),
		Summary:     c.agg.Summary(),
		Interrupted: interrupted,
	}
	if !interrupted {
		r.Thresholds = c.cfg.Thresholds.Check(r.Metrics, &r.Summary)
	}
	r.Verdict = collector.Decide(&r.Summary, r.Thresholds)

	s := r.Summary
	c.log.Info().
		Dur("duration", s.Duration.Round(time.Millisecond)).
		Int64("successful", s.Successful).
		Int64("failed", s.Failed).
		Int64("conflicts", s.Conflicted).
		Int64("failedSeatRequests", s.FailedSeatLookups).
		Int64("attempts", s.TotalAttempts).
		Msg("booking harness completed")
	if !s.Clean() {
		c.log.Error().
			Int64("violations", s.ProtocolViolations).
			Strs("kinds", s.ViolationKinds()).
			Msg("protocol violations detected")
	}
	return r
}
