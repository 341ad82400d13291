//go:build windows

package server

import "syscall"

// Doesn't really matter, Windows can't send these.
const (
	sighup  = syscall.Signal(0x1)
	sigusr1 = syscall.Signal(0xa)
)
