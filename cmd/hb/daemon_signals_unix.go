//go:build unix

package main

import (
	"os"
	"syscall"
)

var daemonSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// SIGHUP re-reads config.yaml instead of stopping the daemon
func isReloadSignal(sig os.Signal) bool {
	return sig == syscall.SIGHUP
}
