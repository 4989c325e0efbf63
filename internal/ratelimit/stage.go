package ratelimit

import (
	"time"

	"seatrace/internal/config"
	"seatrace/internal/core"
)

// StageManager tracks progress through a list of ramp stages. Each stage moves
// the actor target linearly from the previous stage's target (or the start
// value for the first stage) to its own Target.
type StageManager struct {
	stages    []config.Stage
	start     int
	startTime time.Time
	clock     core.Clock
}

// NewStageManager creates a StageManager starting from zero actors on a real clock.
func NewStageManager(stages []config.Stage) *StageManager {
	return NewStageManagerWithClock(stages, 0, core.RealClock{})
}

// NewStageManagerWithClock creates a StageManager with a custom start target and clock.
func NewStageManagerWithClock(stages []config.Stage, start int, clock core.Clock) *StageManager {
	return &StageManager{
		stages:    stages,
		start:     start,
		startTime: clock.Now(),
		clock:     clock,
	}
}

func (sm *StageManager) Elapsed() time.Duration {
	return sm.clock.Since(sm.startTime)
}

// CurrentIndex returns the active stage index, or len(stages) once all are done.
func (sm *StageManager) CurrentIndex() int {
	idx, _ := sm.locate()
	return idx
}

// locate returns the active stage index and how far into it we are.
func (sm *StageManager) locate() (int, time.Duration) {
	elapsed := sm.Elapsed()
	var stageStart time.Duration
	for i, s := range sm.stages {
		if elapsed < stageStart+s.Duration {
			return i, elapsed - stageStart
		}
		stageStart += s.Duration
	}
	return len(sm.stages), 0
}

func (sm *StageManager) Current() *config.Stage {
	idx := sm.CurrentIndex()
	if idx >= len(sm.stages) {
		return nil
	}
	return &sm.stages[idx]
}

func (sm *StageManager) IsComplete() bool {
	return sm.CurrentIndex() >= len(sm.stages)
}

// TargetActors interpolates the desired actor count for the current instant.
func (sm *StageManager) TargetActors() int {
	idx, into := sm.locate()
	if idx >= len(sm.stages) {
		return 0
	}

	from := sm.start
	if idx > 0 {
		from = sm.stages[idx-1].Target
	}
	stage := sm.stages[idx]
	if from == stage.Target {
		return from
	}

	progress := float64(into) / float64(stage.Duration)
	if progress > 1 {
		progress = 1
	}
	return from + int(float64(stage.Target-from)*progress)
}

// CurrentRPS returns the active stage's request rate, 0 meaning unlimited.
func (sm *StageManager) CurrentRPS() int {
	stage := sm.Current()
	if stage == nil {
		return 0
	}
	return stage.RPS
}
