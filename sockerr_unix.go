//go:build !windows
// +build !windows

package main

import (
	"errors"

	"golang.org/x/sys/unix"
)

// The retryable errno classes of the outcome taxonomy. EAGAIN and
// EWOULDBLOCK are distinct values on some systems, so both are checked.

func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
