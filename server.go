package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/gologme/log"
)

// runServer binds, accepts exactly one connection, and receives until the
// peer closes. Setup failures exit 1; once the connection is up, whatever
// was measured gets reported and the process exits 0.
func runServer(cfg *Config, out io.Writer, logger *log.Logger) int {
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		logger.Errorf("listen: %v", err)
		return 1
	}

	fmt.Fprintf(out, "[server] listening on port %d ...\n", cfg.Port)

	conn, err := ln.Accept()
	ln.Close() // one connection per run
	if err != nil {
		logger.Errorf("accept: %v", err)
		return 1
	}

	fmt.Fprintf(out, "[server] local=%s  remote=%s\n", conn.LocalAddr(), conn.RemoteAddr())

	buf := make([]byte, recvBufSize)
	m := NewMeter(out, serverTag, time.Now())
	receive(conn, buf, m, logger)
	conn.Close()
	return 0
}
