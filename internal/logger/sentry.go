package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// NewWithSentry creates a JSON logger that also reports warnings and errors
// to Sentry. Errors become Sentry events. Without a DSN, or when the SDK
// fails to start, it behaves like New.
func NewWithSentry(w io.Writer, level slog.Level, cfg SentryConfig, extractors ...ContextExtractor) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if cfg.DSN == "" {
		return slog.New(NewLogHandlerDecorator(jsonHandler, extractors...))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		EnableLogs:  true,
	}); err != nil {
		slog.New(jsonHandler).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		return slog.New(NewLogHandlerDecorator(jsonHandler, extractors...))
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	return slog.New(NewLogHandlerDecorator(&teeHandler{primary: jsonHandler, mirror: sentryHandler}, extractors...))
}

// teeHandler writes records to primary and mirrors them to a second sink.
// A failing mirror never keeps a record from primary.
type teeHandler struct {
	primary slog.Handler
	mirror  slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.mirror.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	var primaryErr, mirrorErr error
	if h.primary.Enabled(ctx, rec.Level) {
		primaryErr = h.primary.Handle(ctx, rec.Clone())
	}
	if h.mirror.Enabled(ctx, rec.Level) {
		if err := h.mirror.Handle(ctx, rec); err != nil {
			mirrorErr = fmt.Errorf("mirror: %w", err)
		}
	}
	return errors.Join(primaryErr, mirrorErr)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{primary: h.primary.WithAttrs(attrs), mirror: h.mirror.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{primary: h.primary.WithGroup(name), mirror: h.mirror.WithGroup(name)}
}

// Flush waits up to timeout for buffered Sentry events to be sent. It is a
// no-op when Sentry was never initialised.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
