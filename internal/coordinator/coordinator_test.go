package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"seatrace/internal/collector"
	"seatrace/internal/config"
	"seatrace/internal/core"
	"seatrace/internal/ratelimit"

	"github.com/rs/zerolog"
)

func newTestCoordinator() (*collector.Collector, *Coordinator) {
	c := collector.NewCollector()
	return c, NewCoordinator(core.Pipe{Events: c}, zerolog.Nop())
}

// mockWorkflow tracks how many times it was run and by which actors
type mockWorkflow struct {
	runCount atomic.Int32
	delay    time.Duration
	actors   sync.Map
}

func (m *mockWorkflow) Run(ctx context.Context, actorID int, coord core.Coordinator, rep core.Reporter) error {
	m.runCount.Add(1)
	m.actors.Store(actorID, true)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	rep.Report(core.Event{ActorID: actorID, Step: "mock", Success: true, Duration: m.delay})
	return nil
}

func TestCoordinator_SpawnsCorrectNumberOfActors(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	coord.Spawn(ctx, 5, workflow)
	coord.Wait()
	c.Close()

	// Each actor should run at least once
	if workflow.runCount.Load() < 5 {
		t.Errorf("expected at least 5 workflow runs, got %d", workflow.runCount.Load())
	}
}

func TestCoordinator_ActorsRunConcurrently(t *testing.T) {
	c, coord := newTestCoordinator()

	// Workflow that takes 50ms
	workflow := &mockWorkflow{delay: 50 * time.Millisecond}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Spawn 5 actors
	coord.Spawn(ctx, 5, workflow)
	coord.Wait()
	elapsed := time.Since(start)
	c.Close()

	// If actors ran sequentially, it would take 5*50ms = 250ms minimum
	// Since they run concurrently, it should complete in ~100ms (the context timeout)
	if elapsed > 150*time.Millisecond {
		t.Errorf("actors don't appear to run concurrently, took %v", elapsed)
	}
}

func TestCoordinator_ActorsRespectContextCancellation(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: 1 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())

	coord.Spawn(ctx, 3, workflow)

	// Cancel immediately
	cancel()
	coord.Wait()
	c.Close()

	// Actors should stop quickly after cancellation
	// They might have started one run each before context was cancelled
	if workflow.runCount.Load() > 3 {
		t.Logf("workflow ran %d times (expected <= 3)", workflow.runCount.Load())
	}
}

func TestCoordinator_ActorsGetUniqueIDs(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	coord.Spawn(ctx, 10, workflow)
	coord.Wait()
	c.Close()

	// Counted where the workflow runs; a full collector drops events.
	for id := 1; id <= 10; id++ {
		if _, ok := workflow.actors.Load(id); !ok {
			t.Errorf("actor %d never ran", id)
		}
	}
	if _, ok := workflow.actors.Load(11); ok {
		t.Error("unexpected actor 11")
	}
}

func TestCoordinator_ReportsEventsToCollector(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	coord.Spawn(ctx, 3, workflow)
	coord.Wait()
	c.Close()

	events := c.Events()
	if len(events) == 0 {
		t.Error("expected events to be reported to collector")
	}

	// All events should be successful (mock workflow always succeeds)
	for _, e := range events {
		if !e.Success {
			t.Errorf("expected all events to be successful, got failure for actor %d", e.ActorID)
		}
	}
}

func TestCoordinator_WaitBlocksUntilComplete(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: 50 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		coord.Spawn(ctx, 2, workflow)
		coord.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Good - Wait returned
	case <-time.After(500 * time.Millisecond):
		t.Error("Wait did not return in time")
	}

	c.Close()
}

func uniqueActors(events []core.Event) int {
	ids := make(map[int]bool)
	for _, e := range events {
		ids[e.ActorID] = true
	}
	return len(ids)
}

func TestCoordinator_RunStages_RampUp(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: 10 * time.Millisecond}
	stages := []config.Stage{
		{Name: "ramp", Duration: 300 * time.Millisecond, Target: 5},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	coord.RunStages(ctx, stages, workflow, nil, core.RunnerConfig{})
	coord.Wait()
	c.Close()

	if n := uniqueActors(c.Events()); n < 2 {
		t.Errorf("expected multiple actors during ramp, got %d unique actors", n)
	}
}

func TestCoordinator_RunStages_SteadyState(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: 10 * time.Millisecond}
	// A near-instant first stage jumps straight to the steady target.
	stages := []config.Stage{
		{Name: "jump", Duration: time.Millisecond, Target: 5},
		{Name: "steady", Duration: 200 * time.Millisecond, Target: 5},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	coord.RunStages(ctx, stages, workflow, nil, core.RunnerConfig{})
	coord.Wait()
	c.Close()

	if n := uniqueActors(c.Events()); n != 5 {
		t.Errorf("expected 5 actors in steady state, got %d", n)
	}
}

func TestCoordinator_RunStages_MultipleStages(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: 5 * time.Millisecond}
	stages := []config.Stage{
		{Name: "stage1", Duration: 100 * time.Millisecond, Target: 2},
		{Name: "stage2", Duration: 100 * time.Millisecond, Target: 4},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	coord.RunStages(ctx, stages, workflow, nil, core.RunnerConfig{})
	coord.Wait()
	c.Close()

	if len(c.Events()) == 0 {
		t.Error("expected events from multi-stage ramp")
	}
}

// rateLimitedMockWorkflow is a mock that respects rate limiting
type rateLimitedMockWorkflow struct {
	rateLimiter *ratelimit.RateLimiter
}

func (m *rateLimitedMockWorkflow) Run(ctx context.Context, actorID int, coord core.Coordinator, rep core.Reporter) error {
	if err := m.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	rep.Report(core.Event{ActorID: actorID, Step: "mock", Success: true})
	return nil
}

func TestCoordinator_RunStages_WithRateLimiter(t *testing.T) {
	c, coord := newTestCoordinator()

	rateLimiter := ratelimit.NewRateLimiter(20) // 20 RPS with burst of 20
	workflow := &rateLimitedMockWorkflow{rateLimiter: rateLimiter}

	stages := []config.Stage{
		{Name: "jump", Duration: time.Millisecond, Target: 10, RPS: 20},
		{Name: "limited", Duration: 300 * time.Millisecond, Target: 10, RPS: 20},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	coord.RunStages(ctx, stages, workflow, rateLimiter, core.RunnerConfig{})
	coord.Wait()
	c.Close()

	// With 20 RPS (burst=20) over ~300ms: initial burst of 20 + 20*0.3 = ~26 requests max
	eventCount := len(c.Events())
	if eventCount < 10 || eventCount > 40 {
		t.Errorf("expected 10-40 events with rate limiting, got %d", eventCount)
	}
	if rateLimiter.Rate() != 20 {
		t.Errorf("expected limiter rate 20 from the stage, got %d", rateLimiter.Rate())
	}
}

func TestCoordinator_RunStages_RampDown(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: 20 * time.Millisecond}
	stages := []config.Stage{
		{Name: "up", Duration: 100 * time.Millisecond, Target: 10},
		{Name: "down", Duration: 200 * time.Millisecond, Target: 0},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	coord.RunStages(ctx, stages, workflow, nil, core.RunnerConfig{})
	coord.Wait()
	c.Close()

	if coord.ActiveActors() != 0 {
		t.Errorf("expected 0 active actors after ramp down, got %d", coord.ActiveActors())
	}
	if n := uniqueActors(c.Events()); n < 3 {
		t.Errorf("expected multiple actors to run during ramp down, got %d unique actors", n)
	}
}

func TestCoordinator_RunStages_StageTransition(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: 10 * time.Millisecond}
	stages := []config.Stage{
		{Name: "jump", Duration: time.Millisecond, Target: 5},
		{Name: "high", Duration: 150 * time.Millisecond, Target: 5},
		{Name: "drop", Duration: time.Millisecond, Target: 2},
		{Name: "low", Duration: 150 * time.Millisecond, Target: 2},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	coord.RunStages(ctx, stages, workflow, nil, core.RunnerConfig{})
	coord.Wait()
	c.Close()

	if coord.ActiveActors() != 0 {
		t.Errorf("expected 0 actors after stages complete, got %d", coord.ActiveActors())
	}
	if len(c.Events()) == 0 {
		t.Error("expected events from stage transitions")
	}
}

func TestCoordinator_RunStages_ContextCancellation(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{delay: 50 * time.Millisecond}
	stages := []config.Stage{
		{Name: "long", Duration: 10 * time.Second, Target: 100},
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		coord.RunStages(ctx, stages, workflow, nil, core.RunnerConfig{})
		close(done)
	}()

	time.Sleep(250 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("RunStages did not stop after context cancellation")
	}

	coord.Wait()
	c.Close()

	if coord.ActiveActors() != 0 {
		t.Errorf("expected 0 actors after cancellation, got %d", coord.ActiveActors())
	}
}

func TestCoordinator_RunStages_IterationLimit(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{}
	stages := []config.Stage{
		{Name: "jump", Duration: time.Millisecond, Target: 3},
		{Name: "hold", Duration: 300 * time.Millisecond, Target: 3},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Finished actors keep their slot, so they are not replaced.
	coord.RunStages(ctx, stages, workflow, nil, core.RunnerConfig{MaxIterations: 2})
	coord.Wait()
	c.Close()

	if got := len(c.Events()); got != 6 {
		t.Errorf("expected 6 events (3 actors * 2 iterations), got %d", got)
	}
}

func TestCoordinator_ActiveActors(t *testing.T) {
	c, coord := newTestCoordinator()

	if coord.ActiveActors() != 0 {
		t.Errorf("expected 0 active actors initially, got %d", coord.ActiveActors())
	}

	c.Close()
}

func TestCoordinator_StopActors_EmptyStopChans(t *testing.T) {
	c, coord := newTestCoordinator()

	// stopActors on empty coordinator should not panic
	coord.stopActors(5) // No actors to stop

	// Should still work normally after
	if coord.ActiveActors() != 0 {
		t.Errorf("expected 0 actors, got %d", coord.ActiveActors())
	}

	c.Close()
}

func TestCoordinator_SpawnWithConfig_MaxIterations(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	coord.SpawnWithConfig(ctx, 2, workflow, core.RunnerConfig{MaxIterations: 3})
	coord.Wait()
	c.Close()

	events := c.Events()
	// 2 actors * 3 max iterations = 6 events
	if len(events) != 6 {
		t.Errorf("expected 6 events (2 actors * 3 iterations), got %d", len(events))
	}
}

func TestCoordinator_SpawnWithConfig_WarmupIterations(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &mockWorkflow{}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	// 2 warmup + 3 max = 5 total iterations, but only 3 should be reported
	coord.SpawnWithConfig(ctx, 1, workflow, core.RunnerConfig{MaxIterations: 5, WarmupIters: 2})
	coord.Wait()
	c.Close()

	events := c.Events()
	// Only 3 events should be reported (5 max - 2 warmup)
	if len(events) != 3 {
		t.Errorf("expected 3 events (5 max - 2 warmup), got %d", len(events))
	}
}

// panicWorkflow panics on first run
type panicWorkflow struct {
	panicOnce atomic.Bool
}

func (p *panicWorkflow) Run(ctx context.Context, actorID int, coord core.Coordinator, rep core.Reporter) error {
	if p.panicOnce.CompareAndSwap(false, true) {
		panic("test panic")
	}
	rep.Report(core.Event{ActorID: actorID, Step: "mock", Success: true})
	return nil
}

func TestCoordinator_RecoversPanic(t *testing.T) {
	c, coord := newTestCoordinator()

	workflow := &panicWorkflow{}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Spawn 2 actors - one will panic
	coord.Spawn(ctx, 2, workflow)
	coord.Wait()
	c.Close()

	// Should have a panic event reported
	var hasPanicEvent bool
	for _, e := range c.Events() {
		if e.Step == "panic" && !e.Success {
			hasPanicEvent = true
			break
		}
	}

	if !hasPanicEvent {
		t.Error("expected panic to be recovered and reported as failed event")
	}
}
