// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger writing to w. Tests use it to capture output.
func NewWithWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}

// Transition logs the outcome of a service-request lifecycle transition.
// A nil err means the transition was committed.
func (l *Logger) Transition(requestID, role, action, from, to string, err error) {
	if err == nil {
		l.Info("service_request_transition",
			slog.String("service_request_id", requestID),
			slog.String("role", role),
			slog.String("action", action),
			slog.String("from", from),
			slog.String("to", to),
		)
		return
	}
	l.Warn("service_request_transition_rejected",
		slog.String("service_request_id", requestID),
		slog.String("role", role),
		slog.String("action", action),
		slog.String("from", from),
		slog.String("error", err.Error()),
	)
}

// UnknownStatus logs a status code that is not part of the canonical enum.
func (l *Logger) UnknownStatus(code string) {
	l.Warn("status_data_quality",
		slog.String("status", code),
		slog.String("reason", "unrecognized status code"),
	)
}
