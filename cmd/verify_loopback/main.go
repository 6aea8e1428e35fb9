//go:build ignore

// verify_loopback drives a full client/server session over a loopback TCP
// socket without the CLI in the way. The loops here are trimmed copies of
// the ones in transfer.go, enough to cross-check wire behavior and totals.
//
// Usage: go run cmd/verify_loopback/main.go
package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"
)

func main() {
	fmt.Println("=== iperf Loopback Verification ===")
	fmt.Println()

	testRoundTrip()
}

func testRoundTrip() {
	fmt.Println("1. Round Trip (2s send over 127.0.0.1)")
	fmt.Println()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Printf("   ERROR: listen: %v\n", err)
		return
	}
	defer ln.Close()

	received := make(chan int64, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- -1
			return
		}
		defer conn.Close()
		buf := make([]byte, 64*1024)
		var total int64
		for {
			n, err := conn.Read(buf)
			total += int64(n)
			if err != nil {
				received <- total
				return
			}
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		fmt.Printf("   ERROR: dial: %v\n", err)
		return
	}

	payload := bytes.Repeat([]byte{'A'}, 16*1024)
	deadline := time.Now().Add(2 * time.Second)
	start := time.Now()
	var sent int64
	for time.Now().Before(deadline) {
		n, err := conn.Write(payload)
		sent += int64(n)
		if err != nil {
			fmt.Printf("   ERROR: write: %v\n", err)
			break
		}
	}
	conn.(*net.TCPConn).CloseWrite()
	io.Copy(io.Discard, conn)
	duration := time.Since(start)
	conn.Close()

	got := <-received

	bps := float64(sent) / duration.Seconds()
	fmt.Printf("   Sent %d bytes in %v\n", sent, duration)
	fmt.Printf("   Rate: %.2f Mb/s (%.2f MB/s)\n", bps*8/1e6, bps/1e6)
	fmt.Printf("   Receiver counted %d bytes\n", got)

	if got == sent {
		fmt.Println("   ✓ PASS")
	} else {
		fmt.Println("   ✗ FAIL - sent and received byte counts differ")
	}
}
