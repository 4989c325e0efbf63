// Package coordinator manages actor lifecycle and orchestration.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"seatrace/internal/config"
	"seatrace/internal/core"
	"seatrace/internal/ratelimit"

	"github.com/rs/zerolog"
)

const (
	// stageTickInterval is how often we check for stage transitions
	// and adjust actor counts during a staged ramp.
	stageTickInterval = 100 * time.Millisecond
)

// Coordinator runs one goroutine per actor. Actor IDs start at 1 and are
// unique for the lifetime of the Coordinator.
type Coordinator struct {
	nextID      atomic.Int64
	wg          sync.WaitGroup
	reporter    core.Reporter
	log         zerolog.Logger
	activeCount atomic.Int32
	stopChans   []chan struct{}
	stopMu      sync.Mutex
}

func NewCoordinator(reporter core.Reporter, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		reporter: reporter,
		log:      log,
	}
}

// Spawn starts count actors that repeat workflow until ctx is done or the
// workflow returns an error.
func (c *Coordinator) Spawn(ctx context.Context, count int, workflow core.Workflow) {
	c.SpawnWithConfig(ctx, count, workflow, core.RunnerConfig{})
}

// SpawnWithConfig spawns actors using Runner for iteration-level control.
func (c *Coordinator) SpawnWithConfig(ctx context.Context, count int, workflow core.Workflow, cfg core.RunnerConfig) {
	for i := 0; i < count; i++ {
		c.start(ctx, workflow, cfg, nil)
	}
}

func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) ActiveActors() int {
	return int(c.activeCount.Load())
}

// start launches one actor. A nil stop channel never fires.
func (c *Coordinator) start(ctx context.Context, workflow core.Workflow, cfg core.RunnerConfig, stop <-chan struct{}) {
	actorID := int(c.nextID.Add(1))
	c.activeCount.Add(1)
	c.wg.Add(1)

	go func(id int) {
		defer func() {
			c.wg.Done()
			c.activeCount.Add(-1)
		}()
		defer c.recoverPanic(id)
		runner := core.NewRunner(workflow, c.reporter, c, id, cfg)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
				// ErrMaxIterationsReached is a clean exit, anything else ends the actor too.
				if err := runner.RunIteration(ctx); err != nil {
					return
				}
			}
		}
	}(actorID)
}

func (c *Coordinator) spawnWithStop(ctx context.Context, workflow core.Workflow, cfg core.RunnerConfig) {
	stopCh := make(chan struct{})
	c.stopMu.Lock()
	c.stopChans = append(c.stopChans, stopCh)
	c.stopMu.Unlock()
	c.start(ctx, workflow, cfg, stopCh)
}

// recoverPanic recovers from panics in actor goroutines and reports them as failed events.
func (c *Coordinator) recoverPanic(actorID int) {
	if r := recover(); r != nil {
		c.log.Error().Int("actor", actorID).Interface("panic", r).Msg("actor panicked")
		c.reporter.Report(core.Event{
			ActorID: actorID,
			Step:    "panic",
			Success: false,
			Error:   fmt.Sprintf("panic: %v", r),
		})
	}
}

func (c *Coordinator) stopActors(n int) {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	toStop := min(n, len(c.stopChans))
	for i := 0; i < toStop; i++ {
		close(c.stopChans[i])
	}
	c.stopChans = c.stopChans[toStop:]
}

func (c *Coordinator) stopAllActors() {
	c.stopMu.Lock()
	for _, ch := range c.stopChans {
		close(ch)
	}
	c.stopChans = nil
	c.stopMu.Unlock()
}

// RunStages ramps actors through stages, adjusting the actor count and the
// limiter rate every tick. It returns once the last stage ends or ctx is
// done, after signalling every ramped actor to stop. Call Wait to let
// in-flight iterations finish.
func (c *Coordinator) RunStages(ctx context.Context, stages []config.Stage, workflow core.Workflow, limiter *ratelimit.RateLimiter, cfg core.RunnerConfig) {
	sm := ratelimit.NewStageManager(stages)

	c.log.Info().
		Int("stages", len(stages)).
		Dur("duration", config.TotalDuration(stages)).
		Msg("starting staged ramp")

	currentIdx := -1
	ticker := time.NewTicker(stageTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.stopAllActors()
			return
		case <-ticker.C:
			if sm.IsComplete() {
				c.stopAllActors()
				return
			}
			if idx := sm.CurrentIndex(); idx != currentIdx {
				currentIdx = idx
				if stage := sm.Current(); stage != nil {
					ev := c.log.Info().
						Int("stage", idx+1).
						Str("name", stage.Name).
						Dur("duration", stage.Duration).
						Int("target", stage.Target)
					if stage.RPS > 0 {
						ev = ev.Int("rps", stage.RPS)
					}
					ev.Msg("stage started")
				}
			}

			c.stopMu.Lock()
			current := len(c.stopChans)
			c.stopMu.Unlock()

			target := sm.TargetActors()
			if current < target {
				for i := current; i < target; i++ {
					c.spawnWithStop(ctx, workflow, cfg)
				}
			} else if current > target {
				c.stopActors(current - target)
			}
			limiter.SetRate(sm.CurrentRPS())
		}
	}
}
