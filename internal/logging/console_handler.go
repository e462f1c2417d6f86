package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// consoleHandler renders one line per record: a timestamp, a colorized
// level badge, the message, then key=value pairs for any remaining
// attributes. Colors are disabled automatically when the destination is
// not a terminal.
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	color  bool
	attrs  []slog.Attr
	groups []string
}

// NewConsoleHandler wraps w for human-readable console output. If w is an
// *os.File attached to a terminal, ANSI coloring is enabled; otherwise
// output is rendered plain.
func NewConsoleHandler(w io.Writer, level slog.Leveler) slog.Handler {
	useColor := false
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if useColor {
		if f, ok := w.(*os.File); ok {
			w = colorable.NewColorable(f)
		}
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, color: useColor}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) badge(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return paint(h.color, color.FgRed, "ERROR")
	case level >= slog.LevelWarn:
		return paint(h.color, color.FgYellow, "WARN ")
	case level >= slog.LevelInfo:
		return paint(h.color, color.FgGreen, "INFO ")
	default:
		return paint(h.color, color.FgCyan, "DEBUG")
	}
}

func paint(enabled bool, attr color.Attribute, text string) string {
	if !enabled {
		return text
	}
	return color.New(attr).Sprint(text)
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(record.Time.Round(0).Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(h.badge(record.Level))
	buf.WriteByte(' ')
	buf.WriteString(record.Message)

	fields := make(map[string]string)
	for _, attr := range h.attrs {
		collectAttr(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collectAttr(fields, h.groups, attr)
		return true
	})
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%s", k, fields[k])
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func collectAttr(out map[string]string, groups []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if len(groups) > 0 {
		key = fmt.Sprintf("%s.%s", groups[len(groups)-1], key)
	}
	out[key] = attr.Value.String()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}
