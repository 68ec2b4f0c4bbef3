package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// MultiHandler hands every record to each of its handlers that accepts the
// record's level.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler drops nil handlers so optional sinks can be passed as is.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	hs := slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool { return h == nil })
	return &MultiHandler{handlers: hs}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(m.handlers, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle delivers to all sinks even when one fails and reports the joined errors.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = fn(h)
	}
	return &MultiHandler{handlers: hs}
}
