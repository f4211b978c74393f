// Package internal contains internal implementation details.
package internal

import "github.com/netforge/trafficgen"

// NullLogger is a [trafficgen.Logger] that does not emit logs.
type NullLogger struct{}

// Debug implements trafficgen.Logger
func (nl *NullLogger) Debug(message string) {
	// nothing
}

// Debugf implements trafficgen.Logger
func (nl *NullLogger) Debugf(format string, v ...any) {
	// nothing
}

// Info implements trafficgen.Logger
func (nl *NullLogger) Info(message string) {
	// nothing
}

// Infof implements trafficgen.Logger
func (nl *NullLogger) Infof(format string, v ...any) {
	// nothing
}

// Warn implements trafficgen.Logger
func (nl *NullLogger) Warn(message string) {
	// nothing
}

// Warnf implements trafficgen.Logger
func (nl *NullLogger) Warnf(format string, v ...any) {
	// nothing
}

var _ trafficgen.Logger = &NullLogger{}
