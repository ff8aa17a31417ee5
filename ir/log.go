package ir

import (
	"context"
	"log/slog"
)

// keyed is implemented by Canonical and UCanonical values of any type
type keyed interface {
	Key() string
}

// slogValue wraps IR values as a slog.LogValuer so that they are only
// rendered if the record is actually written
func slogValue(v any) (slog.LogValuer, bool) {
	switch v.(type) {
	case Goal, DomainGoal, GenericArg, keyed:
		return stringerLogValuer{v}, true
	}
	return nil, false
}

type stringerLogValuer struct{ v any }

func (l stringerLogValuer) LogValue() slog.Value {
	switch v := l.v.(type) {
	case keyed:
		return slog.StringValue(v.Key())
	case interface{ String() string }:
		return slog.StringValue(v.String())
	}
	return slog.AnyValue(l.v)
}

// SlogHandler is a slog.Handler capable of lazy-printing goals and terms
func SlogHandler(underlying slog.Handler) slog.Handler {
	return &irLogHandler{underlying: underlying}
}

type irLogHandler struct {
	underlying slog.Handler
}

func (l *irLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func (l *irLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		newRecord.AddAttrs(wrapAttr(attr))
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func (l *irLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		wrapped[i] = wrapAttr(attr)
	}
	return SlogHandler(l.underlying.WithAttrs(wrapped))
}

func (l *irLogHandler) WithGroup(name string) slog.Handler {
	return SlogHandler(l.underlying.WithGroup(name))
}

func wrapAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindAny {
		return attr
	}
	if valuer, ok := slogValue(attr.Value.Any()); ok {
		attr.Value = slog.AnyValue(valuer)
	}
	return attr
}
