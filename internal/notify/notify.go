// Package notify defines the notification capability used to surface
// failures to the user, plus a few sinks implementing it.
package notify

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Severity classifies a notification.
type Severity uint8

// Severities, mirroring the alert levels of the storefront UI.
const (
	Info Severity = iota
	Success
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notifier surfaces a message to the user. Implementations must not block.
type Notifier interface {
	Notify(severity Severity, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(severity Severity, message string)

// Notify calls f.
func (f NotifierFunc) Notify(severity Severity, message string) { f(severity, message) }

// Nop returns a Notifier that drops every notification.
func Nop() Notifier {
	return NotifierFunc(func(Severity, string) {})
}

// Multi fans a notification out to every sink in order.
func Multi(sinks ...Notifier) Notifier {
	return NotifierFunc(func(severity Severity, message string) {
		for _, s := range sinks {
			s.Notify(severity, message)
		}
	})
}

// Log returns a Notifier writing notifications to lg.
func Log(lg *zap.Logger) Notifier {
	return NotifierFunc(func(severity Severity, message string) {
		lg.Log(severity.level(), message, zap.Stringer("severity", severity))
	})
}

func (s Severity) level() zapcore.Level {
	switch s {
	case Warning:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
