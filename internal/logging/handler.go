package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ComponentKey is the attribute key rendered as a bracketed prefix
// ("[engine] backup stored") instead of a trailing key=value pair.
const ComponentKey = "component"

// timeFormat keeps millisecond precision; debounce and backup timestamps are
// compared at that resolution when reading logs.
const timeFormat = "15:04:05.000"

// Handler implements slog.Handler for TTY-optimized text output.
// It provides colorized output when the writer supports it.
type Handler struct {
	opts      slog.HandlerOptions
	out       io.Writer
	mu        *sync.Mutex
	attrs     []slog.Attr
	groups    []string
	component string

	// Colors
	timeColor      *color.Color
	debugColor     *color.Color
	infoColor      *color.Color
	warnColor      *color.Color
	errorColor     *color.Color
	keyColor       *color.Color
	componentColor *color.Color
}

// NewHandler creates a new TTY-optimized text handler.
func NewHandler(out io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	h := &Handler{
		opts: *opts,
		out:  out,
		mu:   &sync.Mutex{},
	}

	// Only initialize colors if the writer supports them
	if SupportsColor(out) {
		h.timeColor = color.New(color.FgHiBlack)
		h.debugColor = color.New(color.FgMagenta)
		h.infoColor = color.New(color.FgGreen)
		h.warnColor = color.New(color.FgYellow)
		h.errorColor = color.New(color.FgRed, color.Bold)
		h.keyColor = color.New(color.FgCyan)
		h.componentColor = color.New(color.FgBlue)
	}

	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle writes one line: time, level, [component], message, attributes.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	if !r.Time.IsZero() {
		sb.WriteString(h.paint(h.timeColor, r.Time.Format(timeFormat)))
		sb.WriteByte(' ')
	}

	fmt.Fprintf(&sb, "%-5s ", h.levelString(r.Level))

	component := h.component
	var recAttrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == ComponentKey && len(h.groups) == 0 {
			component = a.Value.String()
			return true
		}
		recAttrs = append(recAttrs, a)
		return true
	})

	if component != "" {
		sb.WriteString(h.paint(h.componentColor, "["+component+"]"))
		sb.WriteByte(' ')
	}

	sb.WriteString(r.Message)

	for _, a := range h.attrs {
		h.appendAttr(&sb, a, false)
	}
	for _, a := range recAttrs {
		h.appendAttr(&sb, a, true)
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func (h *Handler) levelString(l slog.Level) string {
	s := l.String()
	if l <= LevelTrace {
		s = "TRACE"
	}
	if h.timeColor == nil { // use timeColor as proxy for "useColor"
		return s
	}
	switch {
	case l >= slog.LevelError:
		return h.errorColor.Sprint(s)
	case l >= slog.LevelWarn:
		return h.warnColor.Sprint(s)
	case l >= slog.LevelInfo:
		return h.infoColor.Sprint(s)
	default:
		return h.debugColor.Sprint(s)
	}
}

func (h *Handler) paint(c *color.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}

// appendAttr writes " key=value". Attributes bound through WithAttrs already
// carry their group prefix, so grouped is false for them.
func (h *Handler) appendAttr(sb *strings.Builder, a slog.Attr, grouped bool) {
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if grouped && len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}

	value := a.Value.Resolve().Any()

	// Store credentials can end up in attrs when a backend fails to connect.
	if ShouldMask(a.Key) {
		value = MaskValue(fmt.Sprint(value))
	}

	// Quote strings that would break key=value parsing (previews, chat names).
	if s, ok := value.(string); ok && strings.ContainsAny(s, " =\"\n") {
		value = strconv.Quote(s)
	}

	fmt.Fprintf(sb, " %s=%v", h.paint(h.keyColor, key), value)
}

// WithAttrs returns a new Handler with the given attributes.
// A top-level component attribute becomes the line prefix.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := *h
	newH.attrs = make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newH.attrs, h.attrs)
	for _, a := range attrs {
		if a.Key == ComponentKey && len(h.groups) == 0 {
			newH.component = a.Value.String()
			continue
		}
		if len(h.groups) > 0 {
			a.Key = strings.Join(h.groups, ".") + "." + a.Key
		}
		newH.attrs = append(newH.attrs, a)
	}
	return &newH
}

// WithGroup returns a new Handler with the given group name.
// Groups are rendered as dotted key prefixes on attributes added afterwards.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newH := *h
	newH.groups = make([]string, len(h.groups)+1)
	copy(newH.groups, h.groups)
	newH.groups[len(h.groups)] = name
	return &newH
}
