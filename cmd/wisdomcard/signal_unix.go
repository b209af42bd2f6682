//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop a running command: Ctrl+C, and SIGTERM from
// process managers and container runtimes.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
