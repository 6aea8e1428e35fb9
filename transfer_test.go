package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gologme/log"
)

// testLogger captures error-level output so tests can assert on it.
func testLogger(out io.Writer) *log.Logger {
	logger := log.New(out, "", 0)
	logger.EnableLevel("error")
	return logger
}

// scriptReader replays a fixed sequence of read results.
type scriptReader struct {
	steps []readStep
}

type readStep struct {
	data []byte
	err  error
}

func (r *scriptReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	n := copy(p, step.data)
	return n, step.err
}

/// sendTracker is the connection double for sender tests: it counts
// accepted bytes, can slow writes down or fail one, and answers drain
// reads with an immediate end-of-stream.
type sendTracker struct {
	mu         sync.Mutex
	accepted   int64
	writes     int
	writeDelay time.Duration
	zeroWrites bool  // every write returns (0, nil)
	failAfter  int   // fail the write after this many successes (0 = never)
	failWith   error // error for the failing write
	shortWrite bool  // make the failing write a partial one
	wrClosed   bool
}

func (c *sendTracker) Write(p []byte) (int, error) {
	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zeroWrites {
		return 0, nil
	}
	c.writes++
	if c.failAfter > 0 && c.writes > c.failAfter {
		n := 0
		if c.shortWrite {
			n = len(p) / 2
		}
		c.accepted += int64(n)
		return n, c.failWith
	}
	c.accepted += int64(len(p))
	return len(p), nil
}

func (c *sendTracker) Read(p []byte) (int, error) {
	return 0, io.EOF
}

func (c *sendTracker) CloseWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wrClosed = true
	return nil
}

// plainPipe has no CloseWrite, like a test pipe connection.
type plainPipe struct {
	accepted int64
}

func (c *plainPipe) Write(p []byte) (int, error) {
	c.accepted += int64(len(p))
	return len(p), nil
}

func (c *plainPipe) Read(p []byte) (int, error) {
	return 0, io.EOF
}

// drainRecorder scripts the read side and records operation order.
type drainRecorder struct {
	reads []readStep
	ops   []string
}

func (c *drainRecorder) Write(p []byte) (int, error) {
	c.ops = append(c.ops, "write")
	return len(p), nil
}

func (c *drainRecorder) Read(p []byte) (int, error) {
	c.ops = append(c.ops, "read")
	if len(c.reads) == 0 {
		return 0, io.EOF
	}
	step := c.reads[0]
	c.reads = c.reads[1:]
	n := copy(p, step.data)
	return n, step.err
}

func (c *drainRecorder) CloseWrite() error {
	c.ops = append(c.ops, "closewrite")
	return nil
}

func TestReceiveImmediateClose(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, serverTag, start)

	src := &scriptReader{steps: []readStep{{nil, io.EOF}}}
	receive(src, make([]byte, recvBufSize), m, testLogger(&errOut))

	if m.total != 0 {
		t.Errorf("total: got %d, want 0", m.total)
	}
	if n := strings.Count(out.String(), "TOTAL:"); n != 1 {
		t.Fatalf("final reports: got %d, want 1\n%s", n, out.String())
	}
	if errOut.Len() != 0 {
		t.Errorf("peer close logged as an error: %q", errOut.String())
	}
}

func TestReceiveCountsAllBytes(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, serverTag, start)

	chunk := bytes.Repeat([]byte{'A'}, 4096)
	src := &scriptReader{steps: []readStep{
		{chunk, nil},
		{chunk, nil},
		{chunk[:100], io.EOF}, // data can arrive together with the close
	}}
	receive(src, make([]byte, recvBufSize), m, testLogger(&errOut))

	if want := int64(2*4096 + 100); m.total != want {
		t.Errorf("total: got %d, want %d", m.total, want)
	}
	if !strings.Contains(out.String(), "TOTAL: 8292 bytes") {
		t.Errorf("final report: %q", out.String())
	}
}

func TestReceiveFatalErrorStillReports(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, serverTag, start)

	src := &scriptReader{steps: []readStep{
		{bytes.Repeat([]byte{'x'}, 512), nil},
		{nil, errors.New("connection reset by peer")},
	}}
	receive(src, make([]byte, recvBufSize), m, testLogger(&errOut))

	if m.total != 512 {
		t.Errorf("total: got %d, want 512", m.total)
	}
	if n := strings.Count(out.String(), "TOTAL:"); n != 1 {
		t.Errorf("final reports: got %d, want 1\n%s", n, out.String())
	}
	if !strings.Contains(errOut.String(), "connection reset") {
		t.Errorf("fatal error not logged: %q", errOut.String())
	}
}

func TestSendStopsAtDeadline(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, clientTag, start)

	conn := &sendTracker{writeDelay: time.Millisecond}
	send(conn, make([]byte, 1024), start.Add(100*time.Millisecond), nil, m, testLogger(&errOut))
	elapsed := time.Since(start)

	if conn.accepted == 0 {
		t.Fatal("no bytes sent before the deadline")
	}
	if m.total != conn.accepted {
		t.Errorf("meter total %d != accepted %d", m.total, conn.accepted)
	}
	// The last write may begin just under the deadline; allow it to finish.
	expectedMin := 100 * time.Millisecond
	expectedMax := 250 * time.Millisecond
	if elapsed < expectedMin || elapsed > expectedMax {
		t.Errorf("send duration out of range: got %v, expected %v to %v", elapsed, expectedMin, expectedMax)
	}
	if !conn.wrClosed {
		t.Error("write side not half-closed before drain")
	}
	if n := strings.Count(out.String(), "TOTAL:"); n != 1 {
		t.Errorf("final reports: got %d, want 1\n%s", n, out.String())
	}
}

func TestSendZeroWriteEndsSession(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, clientTag, start)

	conn := &sendTracker{zeroWrites: true}
	send(conn, make([]byte, 1024), start.Add(time.Hour), nil, m, testLogger(&errOut))

	if m.total != 0 {
		t.Errorf("total: got %d, want 0", m.total)
	}
	if n := strings.Count(out.String(), "TOTAL:"); n != 1 {
		t.Errorf("final reports: got %d, want 1\n%s", n, out.String())
	}
	if errOut.Len() != 0 {
		t.Errorf("zero write logged as an error: %q", errOut.String())
	}
}

func TestSendShortWriteCountsPartial(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, clientTag, start)

	conn := &sendTracker{failAfter: 3, failWith: errors.New("broken pipe"), shortWrite: true}
	send(conn, make([]byte, 1024), start.Add(time.Hour), nil, m, testLogger(&errOut))

	if want := int64(3*1024 + 512); m.total != want {
		t.Errorf("total: got %d, want %d", m.total, want)
	}
	if !strings.Contains(errOut.String(), "broken pipe") {
		t.Errorf("write error not logged: %q", errOut.String())
	}
	if n := strings.Count(out.String(), "TOTAL:"); n != 1 {
		t.Errorf("final reports: got %d, want 1\n%s", n, out.String())
	}
}

func TestSendWithoutCloseWrite(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, clientTag, start)

	conn := &plainPipe{}
	send(conn, make([]byte, 512), start.Add(20*time.Millisecond), nil, m, testLogger(&errOut))

	if m.total != conn.accepted {
		t.Errorf("meter total %d != accepted %d", m.total, conn.accepted)
	}
	if n := strings.Count(out.String(), "TOTAL:"); n != 1 {
		t.Errorf("final reports: got %d, want 1\n%s", n, out.String())
	}
}

func TestSendRateCap(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, clientTag, start)

	buf := make([]byte, 1024)
	lim := newSendLimiter(100*1024, len(buf)) // 100 KiB/s
	conn := &sendTracker{}
	send(conn, buf, start.Add(500*time.Millisecond), lim, m, testLogger(&errOut))
	duration := time.Since(start)

	bps := float64(m.total) / duration.Seconds()
	t.Logf("Sent %d bytes in %v", m.total, duration)
	t.Logf("Rate: %.2f bytes/sec (target: 102400)", bps)

	// The token bucket bursts the first 100ms of data instantly, so allow
	// a wide band around the cap.
	minRate := 70000.0
	maxRate := 150000.0
	if bps < minRate || bps > maxRate {
		t.Errorf("rate %.2f outside expected range [%.0f, %.0f]", bps, minRate, maxRate)
	}
}

func TestSendIntervalReporting(t *testing.T) {
	var out, errOut bytes.Buffer
	start := time.Now()
	m := NewMeter(&out, clientTag, start)

	// Two seconds of ~1ms writes, long enough to cross at least one
	// interval boundary.
	conn := &sendTracker{writeDelay: time.Millisecond}
	send(conn, make([]byte, 1024), start.Add(2*time.Second), nil, m, testLogger(&errOut))

	if m.total == 0 {
		t.Fatal("no bytes moved")
	}
	if m.total != conn.accepted {
		t.Errorf("meter total %d != accepted %d", m.total, conn.accepted)
	}
	intervals := strings.Count(out.String(), "s: ")
	if intervals < 1 {
		t.Errorf("no interval reports over a 2s session:\n%s", out.String())
	}
	if n := strings.Count(out.String(), "TOTAL:"); n != 1 {
		t.Errorf("final reports: got %d, want 1\n%s", n, out.String())
	}
	t.Logf("%d interval reports, %d bytes total", intervals, m.total)
}

func TestDrainHalfClosesThenDiscards(t *testing.T) {
	var errOut bytes.Buffer
	conn := &drainRecorder{reads: []readStep{
		{bytes.Repeat([]byte{'z'}, 600), nil},
		{bytes.Repeat([]byte{'z'}, 600), nil},
		{nil, io.EOF},
	}}
	drain(conn, testLogger(&errOut))

	if len(conn.ops) == 0 || conn.ops[0] != "closewrite" {
		t.Fatalf("expected CloseWrite before any read, ops: %v", conn.ops)
	}
	reads := 0
	for _, op := range conn.ops[1:] {
		if op != "read" {
			t.Errorf("unexpected op after closewrite: %v", conn.ops)
		}
		reads++
	}
	if reads != 3 {
		t.Errorf("drain reads: got %d, want 3", reads)
	}
}
