package logging

import "log/slog"

// DispatcherLogger exposes a slog.Logger through the narrow logging
// interface the command dispatcher accepts.
type DispatcherLogger struct {
	*slog.Logger
}

// NewDispatcherLogger wraps logger for the dispatcher.
func NewDispatcherLogger(logger *slog.Logger) *DispatcherLogger {
	return &DispatcherLogger{Logger: logger}
}
