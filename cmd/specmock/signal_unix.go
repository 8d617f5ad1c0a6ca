//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyUNIXSignals turns Ctrl+Z into a graceful shutdown.
func notifyUNIXSignals(sigChan chan<- os.Signal) {
	signal.Notify(sigChan, syscall.SIGTSTP)
}

func getShutdownMessage(sig os.Signal) string {
	if sig == syscall.SIGTSTP {
		return "Received suspend signal (Ctrl+Z), shutting down gracefully..."
	}
	return "Received interrupt signal, shutting down..."
}
