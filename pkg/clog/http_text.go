package clog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// headColumns are printed inline before the message, in this order.
var headColumns = []string{"method", "path", "procedure", "status", "code"}

var levelColors = map[slog.Level]color.Attribute{
	slog.LevelDebug: color.FgCyan,
	slog.LevelInfo:  color.FgBlue,
	slog.LevelWarn:  color.FgYellow,
	slog.LevelError: color.FgRed,
}

type TextHandlerConfig struct {
	Color bool
	Level *slog.Level
}

type TextHandlerOption func(*TextHandlerConfig)

func WithColor(c bool) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Color = c
	}
}

func WithLevel(level slog.Level) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Level = &level
	}
}

// HTTPTextHandler is a human oriented handler for local development. A
// request line reads "METHOD path status Message", followed by the remaining
// attributes one per line.
type HTTPTextHandler struct {
	cfg    TextHandlerConfig
	mu     *sync.Mutex
	w      io.Writer
	prefix string
	attrs  []slog.Attr
}

func NewHTTPTextHandler(w io.Writer, opts ...TextHandlerOption) *HTTPTextHandler {
	cfg := TextHandlerConfig{Color: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HTTPTextHandler{cfg: cfg, mu: &sync.Mutex{}, w: w}
}

func (h *HTTPTextHandler) Enabled(_ context.Context, l slog.Level) bool {
	if h.cfg.Level == nil {
		return l >= slog.LevelInfo
	}
	return l >= h.cfg.Level.Level()
}

func (h *HTTPTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &nh
}

func (h *HTTPTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func (h *HTTPTextHandler) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if h.cfg.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func (h *HTTPTextHandler) Handle(_ context.Context, record slog.Record) error {
	kv := map[string]slog.Value{}
	for _, a := range h.attrs {
		flatten(kv, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		flatten(kv, h.prefix, a)
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(record.Time.Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(h.paint(levelColors[record.Level], record.Level.String()))
	buf.WriteByte(' ')
	for _, key := range headColumns {
		if v, ok := kv[key]; ok {
			fmt.Fprintf(&buf, "%s ", v)
			delete(kv, key)
		}
	}
	buf.WriteString(h.paint(color.FgGreen, record.Message))
	if e, ok := kv[ErrorAttributeKey]; ok {
		delete(kv, ErrorAttributeKey)
		buf.WriteByte(' ')
		buf.WriteString(h.paint(color.FgRed, e.String()))
	}
	buf.WriteByte('\n')

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "    %s=%s\n", k, kv[k])
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write log record: %w", err)
	}
	return nil
}

// flatten expands groups into dotted keys.
func flatten(kv map[string]slog.Value, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		kv[prefix+a.Key] = v
		return
	}
	p := prefix
	if a.Key != "" {
		p = prefix + strings.TrimSuffix(a.Key, ".") + "."
	}
	for _, sub := range v.Group() {
		flatten(kv, p, sub)
	}
}
