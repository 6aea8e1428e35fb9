package main

import (
	"fmt"
	"io"
	"time"
)

// Report cadence, and the floor applied to sessions too short to divide by.
const (
	reportEvery = time.Second
	minSession  = 1e-6 // seconds
)

// Role prefixes carried on every report line.
const (
	serverTag = "[server]"
	clientTag = "[client]"
)

// Meter accumulates byte counts for one transfer session and renders the
// per-interval and whole-session throughput reports. It is single-goroutine
// state: the transfer loop feeds it between I/O calls and owns the clock
// reads, which is why every time-sensitive method takes now as an argument.
type Meter struct {
	out io.Writer
	tag string

	start time.Time
	last  time.Time // when the previous interval report was emitted

	total    int64 // bytes since start
	interval int64 // bytes since the previous interval report
}

// NewMeter returns a meter reporting to out with the given role tag.
func NewMeter(out io.Writer, tag string, start time.Time) *Meter {
	return &Meter{out: out, tag: tag, start: start, last: start}
}

// Record counts n freshly transferred bytes. No clock access, no output.
func (m *Meter) Record(n int) {
	m.total += int64(n)
	m.interval += int64(n)
}

// Poll emits one interval report if at least a second has passed since the
// previous one, then starts a fresh interval. The rate divides by the
// elapsed time actually observed, so a loop stalled in a blocked I/O call
// produces one longer, correctly averaged interval rather than a fictitious
// one-second one.
func (m *Meter) Poll(now time.Time) {
	elapsed := now.Sub(m.last)
	if elapsed < reportEvery {
		return
	}
	bps := float64(m.interval) / elapsed.Seconds()
	fmt.Fprintf(m.out, "%s %.0f-%.0fs: %d bytes  %s\n",
		m.tag, m.last.Sub(m.start).Seconds(), now.Sub(m.start).Seconds(), m.interval, formatRate(bps))
	m.interval = 0
	m.last = now
}

// Finish emits the whole-session report. Called exactly once, after the
// transfer loop exits; a final interval shorter than a second folds into
// the total without a report line of its own.
func (m *Meter) Finish(now time.Time) {
	dt := now.Sub(m.start).Seconds()
	if dt < minSession {
		dt = minSession
	}
	fmt.Fprintf(m.out, "%s TOTAL: %d bytes in %.2fs  %s\n",
		m.tag, m.total, dt, formatRate(float64(m.total)/dt))
}

// formatRate renders bytes/sec in the two customary units. Decimal mega
// (1e6), not mebi.
func formatRate(bytesPerSec float64) string {
	return fmt.Sprintf("%.2f Mb/s (%.2f MB/s)", bytesPerSec*8/1e6, bytesPerSec/1e6)
}
