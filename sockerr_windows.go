//go:build windows
// +build windows

package main

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isInterrupted(err error) bool {
	return errors.Is(err, windows.WSAEINTR)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, windows.WSAEWOULDBLOCK)
}
