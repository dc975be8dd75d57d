// SPDX-License-Identifier: MIT
package validate

import "strings"

// LogLevel is a log level name accepted by the daemon's logger.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = []LogLevel{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

// ErrInvalidLogLevel is returned by ParseLogLevel for unknown names.
var ErrInvalidLogLevel = &Error{
	Field:   "logLevel",
	Message: "invalid log level (must be: trace, debug, info, warn, error)",
}

// ParseLogLevel accepts a level name case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range logLevels {
		if l == level {
			return level, nil
		}
	}
	return "", ErrInvalidLogLevel
}

// LogLevel validates a log level name.
func (v *Validator) LogLevel(field, level string) {
	if _, err := ParseLogLevel(level); err != nil {
		v.AddError(field, ErrInvalidLogLevel.Message, level)
	}
}
