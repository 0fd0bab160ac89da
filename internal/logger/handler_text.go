package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiDim    = "\033[2m"
)

const timeLayout = "2006-01-02 15:04:05.000"

// textHandler writes one line per record:
//
//	2024-05-01 10:00:00.000 INFO  message key=value key="quoted value"
//
// Groups are flattened into dotted keys.
type textHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	opts  slog.HandlerOptions
	color bool

	prefix string // dotted group path, with trailing dot
	bound  []byte // preformatted WithAttrs output
}

func newTextHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *textHandler {
	h := &textHandler{w: w, mu: &sync.Mutex{}, color: color}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *textHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return l >= minLevel
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	if !r.Time.IsZero() {
		buf.WriteString(h.paint(ansiDim, r.Time.Format(timeLayout)))
		buf.WriteByte(' ')
	}
	buf.WriteString(h.levelLabel(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	buf.Write(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	buf := bytes.NewBuffer(append([]byte(nil), h.bound...))
	for _, a := range attrs {
		h.writeAttr(buf, h.prefix, a)
	}
	c.bound = buf.Bytes()
	return &c
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func (h *textHandler) paint(code, s string) string {
	if !h.color {
		return s
	}
	return code + s + ansiReset
}

// levelLabel pads to five columns so messages line up.
func (h *textHandler) levelLabel(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return h.paint(ansiRed, "ERROR")
	case l >= slog.LevelWarn:
		return h.paint(ansiYellow, "WARN ")
	case l >= slog.LevelInfo:
		return h.paint(ansiGreen, "INFO ")
	default:
		return h.paint(ansiDim, "DEBUG")
	}
}

func (h *textHandler) writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, p, ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(h.paint(ansiBlue, prefix+a.Key))
	buf.WriteByte('=')
	buf.WriteString(textValue(a.Value))
}

func textValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = v.String()
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
