//go:build windows

package main

import "os"

// shutdownSignals stop a running command. Windows has no SIGTERM; the
// runtime delivers Ctrl+C, Ctrl+Break and console close as os.Interrupt.
var shutdownSignals = []os.Signal{os.Interrupt}
