package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// consoleHandler prints one line per record for an operator watching the
// booth terminal:
//
//	18:42:07 INFO  [processor] Successfully processed: /out/party_3.jpg run_id=...
type consoleHandler struct {
	out       *lockedWriter
	level     slog.Leveler
	component string
	prefix    string
	fields    []field
	addSource bool
	color     bool
}

type field struct {
	key   string
	value slog.Value
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource, color bool) *consoleHandler {
	return &consoleHandler{
		out:       &lockedWriter{w: w},
		level:     level,
		addSource: addSource,
		color:     color,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	next := h.clone()
	record.Attrs(func(attr slog.Attr) bool {
		next.add(h.prefix, attr)
		return true
	})

	var buf bytes.Buffer
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.paint(&buf, ansiDim, ts.Format(time.TimeOnly))
	buf.WriteByte(' ')
	h.paint(&buf, levelColor(record.Level), fmt.Sprintf("%-5s", levelLabel(record.Level)))
	if next.component != "" {
		buf.WriteString(" [" + next.component + "]")
	}
	buf.WriteByte(' ')
	buf.WriteString(strings.TrimSpace(record.Message))

	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range next.fields {
		// event_type is for machines below warn level; the message says it already.
		if f.key == FieldEventType && record.Level < slog.LevelWarn {
			continue
		}
		buf.WriteByte(' ')
		h.paint(&buf, ansiDim, f.key+"=")
		buf.WriteString(consoleValue(f.value))
	}
	buf.WriteByte('\n')

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := h.out.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, attr := range attrs {
		next.add(h.prefix, attr)
	}
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix += name + "."
	return next
}

func (h *consoleHandler) clone() *consoleHandler {
	next := *h
	next.fields = slices.Clone(h.fields)
	return &next
}

// add flattens attr into the handler. The innermost component wins and a
// repeated key replaces the earlier value in place.
func (h *consoleHandler) add(prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			h.add(prefix, member)
		}
		return
	}
	if prefix == "" && attr.Key == FieldComponent {
		h.component = attr.Value.String()
		return
	}
	key := prefix + attr.Key
	for i := range h.fields {
		if h.fields[i].key == key {
			h.fields[i].value = attr.Value
			return
		}
	}
	h.fields = append(h.fields, field{key: key, value: attr.Value})
}

func (h *consoleHandler) paint(buf *bytes.Buffer, color, text string) {
	if !h.color {
		buf.WriteString(text)
		return
	}
	buf.WriteString(color + text + ansiReset)
}

func consoleValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindDuration:
		d := v.Duration()
		if d >= time.Millisecond {
			d = d.Round(time.Millisecond)
		}
		return d.String()
	case slog.KindTime:
		return v.Time().Format(time.TimeOnly)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiCyan
	default:
		return ansiDim
	}
}
