package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ivlev/scene2video/internal/event"
)

// EventHandler turns log records into log events, so that whoever issued the
// commands sees what scenes and the pipeline report.
type EventHandler struct {
	sink   event.Sink
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
}

// NewEventHandler creates a handler emitting records at or above level into sink.
func NewEventHandler(sink event.Sink, level slog.Leveler) *EventHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &EventHandler{sink: sink, level: level}
}

func (h *EventHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *EventHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if r.Level >= slog.LevelWarn {
		b.WriteString(r.Level.String())
		b.WriteString(": ")
	}
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	h.sink.Emit(event.Log{Message: b.String()})
	return nil
}

func (h *EventHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *EventHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
