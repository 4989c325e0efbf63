// Package progress prints a one-line live status of a running harness.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"seatrace/internal/collector"
	"seatrace/internal/metrics"
)

type Progress struct {
	startTime  time.Time
	collector  *collector.Collector
	aggregator *metrics.Aggregator
	ticker     *time.Ticker
	stopCh     chan struct{}
	stopped    atomic.Bool
	quiet      bool
	output     io.Writer
	mu         sync.Mutex
}

// NewProgress creates a printer over the run's collector and aggregator.
// Either may be nil.
func NewProgress(c *collector.Collector, agg *metrics.Aggregator, quiet bool) *Progress {
	return &Progress{
		collector:  c,
		aggregator: agg,
		quiet:      quiet,
		output:     os.Stderr,
	}
}

// Watch replaces the status sources. Call it before Start.
func (p *Progress) Watch(c *collector.Collector, agg *metrics.Aggregator) {
	p.collector = c
	p.aggregator = agg
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(1 * time.Second)
	go p.run()
}

func (p *Progress) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printProgress()
		}
	}
}

func (p *Progress) printProgress() {
	line := p.status(time.Since(p.startTime))
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\r", line)
	p.mu.Unlock()
}

// status renders the live line for the given elapsed time.
func (p *Progress) status(elapsed time.Duration) string {
	elapsed = elapsed.Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	line := fmt.Sprintf("[%02d:%02d]", mins, secs)

	if p.collector != nil {
		m := p.collector.Compute()
		errorRate := 0.0
		if m.TotalRequests > 0 {
			errorRate = float64(m.FailureCount) / float64(m.TotalRequests) * 100
		}
		line += fmt.Sprintf(" Requests: %d | RPS: %.1f | Errors: %d (%.1f%%)",
			m.TotalRequests, m.RequestsPerSec, m.FailureCount, errorRate)
	}
	if p.aggregator != nil {
		s := p.aggregator.Summary()
		line += fmt.Sprintf(" | Booked: %d | Conflicts: %d | Failed: %d | Violations: %d",
			s.Successful, s.Conflicted, s.Failed, s.ProtocolViolations)
	}
	return line
}

func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

// Write lets the progress line share its output with a log writer:
// every write clears the live line first.
func (p *Progress) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprint(p.output, "\033[K"); err != nil {
		return 0, err
	}
	return p.output.Write(b)
}
