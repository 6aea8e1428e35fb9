package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gologme/log"
	"golang.org/x/time/rate"
)

// Transfer loop tuning
const (
	recvBufSize  = 64 * 1024        // receiver scratch buffer
	drainBufSize = 1024             // discard buffer for the shutdown drain
	retryDelay   = time.Millisecond // pause before retrying a would-block call
)

// ioOutcome classifies the result of one socket read or write.
type ioOutcome int

const (
	ioOK          ioOutcome = iota // call succeeded
	ioClosed                       // orderly end of stream
	ioInterrupted                  // interrupted before transferring; retry now
	ioWouldBlock                   // no progress possible; back off briefly
	ioFatal                        // anything else
)

// classify maps the error from a socket call onto an outcome. The errno
// predicates live in the per-platform sockerr files, so the loops below
// never touch platform detail.
func classify(err error) ioOutcome {
	switch {
	case err == nil:
		return ioOK
	case errors.Is(err, io.EOF):
		return ioClosed
	case isInterrupted(err):
		return ioInterrupted
	case isWouldBlock(err):
		return ioWouldBlock
	}
	return ioFatal
}

// receive reads conn into the scratch buffer until the peer closes or a
// read fails fatally, feeding every byte to the meter. The final report is
// emitted on every exit path: a mid-session error costs the remainder of
// the session, not the results already gathered.
func receive(conn io.Reader, buf []byte, m *Meter, logger *log.Logger) {
loop:
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			m.Record(n)
			m.Poll(time.Now())
		}
		switch classify(err) {
		case ioOK:
		case ioClosed:
			logger.Debugln("recv: peer closed")
			break loop
		case ioInterrupted:
			logger.Debugln("recv: interrupted, retrying")
		case ioWouldBlock:
			time.Sleep(retryDelay)
		case ioFatal:
			logger.Errorf("recv: %v", err)
			break loop
		}
	}
	m.Finish(time.Now())
}

// send writes buf to conn over and over until the deadline, then
// half-closes and drains. The clock is read once before each write; an
// in-flight write always completes even if the deadline passes under it.
// A short write counts as a partial transfer of n bytes and the next
// iteration starts a fresh full-buffer write. lim may be nil (unlimited).
func send(conn io.ReadWriter, buf []byte, deadline time.Time, lim *rate.Limiter, m *Meter, logger *log.Logger) {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

loop:
	for {
		if !time.Now().Before(deadline) {
			break
		}
		if lim != nil {
			// A wait that would overshoot the deadline aborts here
			// instead of issuing a late write.
			if err := lim.WaitN(ctx, len(buf)); err != nil {
				break
			}
		}
		n, err := conn.Write(buf)
		if n > 0 {
			m.Record(n)
			m.Poll(time.Now())
		}
		switch classify(err) {
		case ioOK:
			if n == 0 {
				break loop
			}
		case ioClosed:
			logger.Debugln("send: peer closed")
			break loop
		case ioInterrupted:
			logger.Debugln("send: interrupted, retrying")
		case ioWouldBlock:
			time.Sleep(retryDelay)
		case ioFatal:
			logger.Errorf("send: %v", err)
			break loop
		}
	}
	drain(conn, logger)
	m.Finish(time.Now())
}

// drain half-closes the write side so the peer sees end-of-stream, then
// discards whatever is still in flight until the peer closes too. Best
// effort: nothing in here can fail the session.
func drain(conn io.ReadWriter, logger *log.Logger) {
	type closeWriter interface {
		CloseWrite() error
	}
	if cw, ok := conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			logger.Debugf("close write: %v", err)
		}
	}
	scratch := make([]byte, drainBufSize)
	for {
		n, err := conn.Read(scratch)
		if err != nil || n == 0 {
			return
		}
	}
}
