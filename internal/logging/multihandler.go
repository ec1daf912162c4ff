package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// MultiHandler fans one record out to several destinations. The service log
// file and the OTel bridge hang off the same logger through it.
type MultiHandler struct {
	targets []slog.Handler
}

// NewMultiHandler builds a fan-out over the non-nil targets.
func NewMultiHandler(targets ...slog.Handler) *MultiHandler {
	m := &MultiHandler{}
	for _, h := range targets {
		if h != nil {
			m.targets = append(m.targets, h)
		}
	}
	return m
}

// Enabled reports whether any target wants records at this level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(m.targets, func(h slog.Handler) bool {
		return h.Enabled(ctx, level)
	})
}

// Handle delivers the record to every enabled target. A failing target does
// not block the rest; its error comes back joined with any others.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.targets {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		// clone per target, handlers may retain the record
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs pushes the attributes down into every target.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.targets))
	for i, h := range m.targets {
		next[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{targets: next}
}

// WithGroup pushes the group down into every target.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	next := make([]slog.Handler, len(m.targets))
	for i, h := range m.targets {
		next[i] = h.WithGroup(name)
	}
	return &MultiHandler{targets: next}
}
