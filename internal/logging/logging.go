// Package logging configures structured logging for meetbot.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	slogotel "github.com/remychantenay/slog-otel"
)

type ctxKey string

// ErrKey is the attribute key used for errors
const ErrKey = "error"

const slogFields ctxKey = "slog_fields"

type contextHandler struct {
	slog.Handler
}

// Handle copies the attributes stored in ctx onto the record
func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// AppendCtx returns a context whose log records carry attr
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	prev, _ := parent.Value(slogFields).([]slog.Attr)
	attrs := make([]slog.Attr, 0, len(prev)+1)
	attrs = append(attrs, prev...)
	attrs = append(attrs, attr)
	return context.WithValue(parent, slogFields, attrs)
}

// WithMeeting tags every record logged with ctx with the meeting ID
func WithMeeting(ctx context.Context, meetingID string) context.Context {
	return AppendCtx(ctx, slog.String("meeting_id", meetingID))
}

// ParseLevel maps LOG_LEVEL values to slog levels
func ParseLevel(level string, debug bool) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	}
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewHandler builds the handler used by both binaries.
// format "text" selects the human readable handler, anything else JSON.
// Records logged inside a span carry its trace and span IDs.
func NewHandler(w io.Writer, format string, level slog.Level, addSource bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return contextHandler{slogotel.OtelHandler{Next: h}}
}

// InitStructureLogConfig installs the default logger from LOG_LEVEL,
// LOG_FORMAT and LOG_ADD_SOURCE.
// The MCP binary passes os.Stderr since stdout carries the protocol.
func InitStructureLogConfig(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(os.Getenv("LOG_LEVEL"), debug)
	addSource := os.Getenv("LOG_ADD_SOURCE")
	h := NewHandler(w, os.Getenv("LOG_FORMAT"), level, addSource == "true" || addSource == "1")

	logger := slog.New(h)
	slog.SetDefault(logger)
	logger.Debug("log config", "level", level.String())
	return logger
}
