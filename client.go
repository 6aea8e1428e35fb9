package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/gologme/log"
	"golang.org/x/time/rate"
)

// runClient resolves, dials, and sends for the configured duration.
// Setup failures exit 1; once the stream is up, whatever happens gets
// reported and the process exits 0.
func runClient(cfg *Config, out io.Writer, logger *log.Logger) int {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		logger.Errorf("resolve failed for host %s: %v", cfg.Host, err)
		return 1
	}

	fmt.Fprintf(out, "[client] connect %s ...\n", addr)

	conn, err := net.DialTCP("tcp", nil, raddr)
	if err != nil {
		logger.Errorf("connect: %v", err)
		return 1
	}

	fmt.Fprintf(out, "[client] seconds=%d  buf=%dKB  (single TCP stream)\n", cfg.Seconds, cfg.BufKB)

	buf := bytes.Repeat([]byte{'A'}, cfg.BufKB*1024)
	lim := newSendLimiter(cfg.Rate, len(buf))

	start := time.Now()
	m := NewMeter(out, clientTag, start)
	send(conn, buf, start.Add(time.Duration(cfg.Seconds)*time.Second), lim, m, logger)
	conn.Close()
	return 0
}

// newSendLimiter builds the token bucket for an optional send cap. Burst
// is 100ms of data, floored at one payload buffer so a single WaitN can
// always be satisfied. A zero rate means no limiter at all.
func newSendLimiter(rateBytes int64, bufSize int) *rate.Limiter {
	if rateBytes <= 0 {
		return nil
	}
	burst := int(rateBytes / 10) // 100ms of data
	if burst < bufSize {
		burst = bufSize
	}
	return rate.NewLimiter(rate.Limit(rateBytes), burst)
}
