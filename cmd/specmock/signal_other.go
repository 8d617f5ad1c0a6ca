//go:build !unix

package main

import "os"

func notifyUNIXSignals(chan<- os.Signal) {}

func getShutdownMessage(os.Signal) string {
	return "Received interrupt signal, shutting down..."
}
