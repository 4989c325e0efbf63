package core

import (
	"context"
	"errors"
)

// ErrMaxIterationsReached is returned once an actor has run all its attempts.
var ErrMaxIterationsReached = errors.New("max iterations reached")

// NullReporter swallows everything. Warmup attempts report to it.
var NullReporter Reporter = discard{}

type discard struct{}

func (discard) Report(Event)             {}
func (discard) Record(Outcome)           {}
func (discard) RecordTrial(TrialVerdict) {}

// RunnerConfig bounds the attempts of one actor.
type RunnerConfig struct {
	MaxIterations int // 0 runs until the context ends
	WarmupIters   int // leading attempts whose events and outcomes are discarded
}

// Runner drives one actor through its attempts. Each actor goroutine owns its
// Runner; it is not safe for concurrent use.
type Runner struct {
	workflow Workflow
	reporter Reporter
	coord    Coordinator
	actorID  int
	cfg      RunnerConfig
	done     int
}

func NewRunner(workflow Workflow, reporter Reporter, coord Coordinator, actorID int, cfg RunnerConfig) *Runner {
	return &Runner{
		workflow: workflow,
		reporter: reporter,
		coord:    coord,
		actorID:  actorID,
		cfg:      cfg,
	}
}

// RunIteration runs the next attempt with the iteration number on ctx. The
// workflow's error is returned as is; an attempt that errored still counts.
func (r *Runner) RunIteration(ctx context.Context) error {
	if r.exhausted() {
		return ErrMaxIterationsReached
	}
	sink := r.reporter
	if r.IsWarmup() {
		sink = NullReporter
	}
	n := r.done
	r.done++
	return r.workflow.Run(ContextWithIteration(ctx, n), r.actorID, r.coord, sink)
}

func (r *Runner) exhausted() bool {
	return r.cfg.MaxIterations > 0 && r.done >= r.cfg.MaxIterations
}

// Iteration returns how many attempts have run.
func (r *Runner) Iteration() int { return r.done }

// IsWarmup reports whether the next attempt is still a warmup one.
func (r *Runner) IsWarmup() bool { return r.done < r.cfg.WarmupIters }
