// Package core defines the fundamental interfaces and types shared by the harness.
package core

import (
	"context"
	"time"
)

// Event represents a single HTTP call made by an actor, with the checks
// asserted against its response.
type Event struct {
	ActorID    int
	Scenario   string
	Timestamp  time.Time
	Step       string
	Duration   time.Duration
	Success    bool
	Error      string
	StatusCode int
	BytesSent  int64
	BytesRecv  int64
	Checks     []Check
}

// Check is a named pass/fail assertion recorded against one call.
type Check struct {
	Name   string
	Passed bool
}

// Workflow defines a user journey that an actor executes.
// A workflow run must fold every expected failure into its reported outcome;
// a returned error stops the actor.
type Workflow interface {
	Run(ctx context.Context, actorID int, coord Coordinator, rep Reporter) error
}

// Coordinator spawns and manages actors.
type Coordinator interface {
	Spawn(ctx context.Context, count int, workflow Workflow)
}

// Reporter is the interface actors use to send per-call events and
// classified scenario outcomes.
type Reporter interface {
	EventSink
	OutcomeRecorder
}

// EventSink receives per-call events (the Collector).
type EventSink interface {
	Report(Event)
}

// OutcomeRecorder receives the classified result of every scenario run
// and every conflict trial (the metrics Aggregator).
type OutcomeRecorder interface {
	Record(Outcome)
	RecordTrial(TrialVerdict)
}

// Pipe routes events and outcomes to separate sinks. Nil sinks discard.
type Pipe struct {
	Events   EventSink
	Outcomes OutcomeRecorder
}

func (p Pipe) Report(e Event) {
	if p.Events != nil {
		p.Events.Report(e)
	}
}

func (p Pipe) Record(o Outcome) {
	if p.Outcomes != nil {
		p.Outcomes.Record(o)
	}
}

func (p Pipe) RecordTrial(v TrialVerdict) {
	if p.Outcomes != nil {
		p.Outcomes.RecordTrial(v)
	}
}
