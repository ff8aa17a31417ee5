package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cottand/traitsolve/ir"
)

var (
	sectionsMu      sync.RWMutex
	enabledSections = []string{
		"solve",
		"coinduction",
		"fulfill",
		"infer",
		"program",
		"parser",
	}
)

var level = new(slog.LevelVar)

var LoggerOpts = &slog.HandlerOptions{
	AddSource: true,
	Level:     level,
	ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "time" {
			return slog.Attr{}
		}
		return a
	},
}

// DefaultLogger only writes debug and info records tagged with an enabled
// "section" attribute. Warnings and errors are always written.
var DefaultLogger = slog.New(&filteringHandler{underlying: ir.SlogHandler(&outputHandler{})})

func init() {
	level.Set(slog.LevelError)
	SetOutput(os.Stdout, false)
}

// SetLevel changes the minimum level of every logger derived from DefaultLogger
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetOutput redirects every logger derived from DefaultLogger, including
// those created before the call
func SetOutput(w io.Writer, json bool) {
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, LoggerOpts)
	} else {
		h = slog.NewTextHandler(w, LoggerOpts)
	}
	output.Store(&h)
}

var output atomic.Pointer[slog.Handler]

// outputHandler records attributes and groups so that they can be replayed
// onto whichever handler SetOutput installed last
type outputHandler struct {
	ops []func(slog.Handler) slog.Handler
}

func (o *outputHandler) current() slog.Handler {
	h := *output.Load()
	for _, op := range o.ops {
		h = op(h)
	}
	return h
}

func (o *outputHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= level.Level()
}

func (o *outputHandler) Handle(ctx context.Context, record slog.Record) error {
	return o.current().Handle(ctx, record)
}

func (o *outputHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &outputHandler{ops: append(slices.Clip(o.ops), func(h slog.Handler) slog.Handler {
		return h.WithAttrs(attrs)
	})}
}

func (o *outputHandler) WithGroup(name string) slog.Handler {
	return &outputHandler{ops: append(slices.Clip(o.ops), func(h slog.Handler) slog.Handler {
		return h.WithGroup(name)
	})}
}

// EnableSections replaces the set of sections whose debug records are written
func EnableSections(sections ...string) {
	sectionsMu.Lock()
	defer sectionsMu.Unlock()
	enabledSections = slices.Clone(sections)
}

func sectionEnabled(section string) bool {
	sectionsMu.RLock()
	defer sectionsMu.RUnlock()
	return slices.ContainsFunc(enabledSections, func(enabled string) bool {
		return strings.HasPrefix(section, enabled)
	})
}

var _ slog.Handler = &filteringHandler{}

type filteringHandler struct {
	underlying slog.Handler
	sections   []string
}

func (f filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return f.underlying.Enabled(ctx, level)
}

func (f filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelWarn {
		return f.underlying.Handle(ctx, record)
	}
	wantSection := slices.ContainsFunc(f.sections, sectionEnabled)
	if !wantSection {
		record.Attrs(func(attr slog.Attr) bool {
			wantSection = attr.Key == "section" && sectionEnabled(attr.Value.String())
			// iterate as long as we have not found our section
			return !wantSection
		})
	}
	if !wantSection {
		return nil
	}
	return f.underlying.Handle(ctx, record)
}

func (f filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var newAttrs []slog.Attr
	sections := slices.Clone(f.sections)

	// keep the section attribute in filteringHandler
	for _, attr := range attrs {
		if attr.Key == "section" {
			sections = append(sections, attr.Value.String())
		} else {
			newAttrs = append(newAttrs, attr)
		}
	}
	return &filteringHandler{
		underlying: f.underlying.WithAttrs(newAttrs),
		sections:   sections,
	}
}

func (f filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{
		underlying: f.underlying.WithGroup(name),
		sections:   f.sections,
	}
}
