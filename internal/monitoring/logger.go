// Package monitoring holds the process-wide diagnostics of the camera
// runtime: a swappable logger for lifecycle events and the Prometheus
// collectors for channel polls, buffer allocations, detections and streams.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests mute it or capture lifecycle messages through it.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
