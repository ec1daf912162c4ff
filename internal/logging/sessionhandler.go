package logging

import (
	"context"
	"log/slog"
)

// SessionAttrs supplies the attributes stamped onto each record as it is
// handled: live session name, session row id, and storage mode.
type SessionAttrs func() []slog.Attr

// SessionHandler decorates another handler with provider-supplied attrs.
// Static attributes live in the inner handler; the provider runs per record
// so the values track the session that is active when the line is written.
type SessionHandler struct {
	next slog.Handler
	live SessionAttrs
}

// NewSessionHandler wraps inner so every record picks up the provider's
// current attributes.
func NewSessionHandler(inner slog.Handler, provider SessionAttrs) *SessionHandler {
	return &SessionHandler{next: inner, live: provider}
}

// Enabled asks the inner handler.
func (h *SessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle stamps the live attributes and passes the record on.
func (h *SessionHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.live != nil {
		r.AddAttrs(h.live()...)
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs keeps the provider and pushes the attrs into the inner handler.
func (h *SessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SessionHandler{next: h.next.WithAttrs(attrs), live: h.live}
}

// WithGroup keeps the provider and pushes the group into the inner handler.
func (h *SessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SessionHandler{next: h.next.WithGroup(name), live: h.live}
}
