//go:build !windows
// +build !windows

package main

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddr marks the socket SO_REUSEADDR before bind so a restarted
// server is not locked out by its own TIME_WAIT remnants.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
