// Package collector aggregates per-call events into latency and check metrics.
package collector

import (
	"sync"
	"sync/atomic"
	"time"

	"seatrace/internal/core"
)

// DefaultBufferSize is the event channel capacity used by NewCollector.
const DefaultBufferSize = 4096

// Collector aggregates events from actors and produces metrics.
// Report never blocks; events that do not fit the buffer are counted as dropped.
type Collector struct {
	events    []core.Event
	ch        chan core.Event
	done      chan struct{}
	mu        sync.Mutex
	dropped   atomic.Int64
	startTime time.Time
	endTime   time.Time
}

// NewCollector creates a new Collector and starts its collection goroutine.
func NewCollector() *Collector {
	return NewCollectorWithBuffer(DefaultBufferSize)
}

// NewCollectorWithBuffer creates a Collector with a custom channel capacity.
func NewCollectorWithBuffer(size int) *Collector {
	c := &Collector{
		events:    make([]core.Event, 0),
		ch:        make(chan core.Event, size),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for event := range c.ch {
		c.mu.Lock()
		c.events = append(c.events, event)
		c.mu.Unlock()
	}
	close(c.done)
}

// Report sends an event to the collector. Thread-safe.
func (c *Collector) Report(event core.Event) {
	select {
	case c.ch <- event:
	default:
		c.dropped.Add(1)
	}
}

// Close stops accepting events and waits for the buffer to drain.
// Report must not be called after Close.
func (c *Collector) Close() {
	c.endTime = time.Now()
	close(c.ch)
	<-c.done
}

// Events returns a copy of collected events.
func (c *Collector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Event, len(c.events))
	copy(result, c.events)
	return result
}

// DroppedEvents returns how many events were discarded because the buffer was full.
func (c *Collector) DroppedEvents() int64 {
	return c.dropped.Load()
}

// Compute returns metrics over everything collected so far.
func (c *Collector) Compute() *Metrics {
	return ComputeMetrics(c.Events(), c.Duration())
}

// Duration returns the run duration: start to Close, or start to now while running.
func (c *Collector) Duration() time.Duration {
	if !c.endTime.IsZero() {
		return c.endTime.Sub(c.startTime)
	}
	return time.Since(c.startTime)
}
