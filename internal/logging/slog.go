package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Options selects the sinks of a SlogManager
type Options struct {
	Level string
	// Console defaults to stdout. Set Quiet to drop it.
	Console io.Writer
	Quiet   bool
	File    io.Writer
	// Provider enables the OpenTelemetry bridge when non-nil.
	Provider    *sdklog.LoggerProvider
	ServiceName string
	Context     ContextProvider
}

// SlogManager owns the process logger and the optional OTel log provider
type SlogManager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel maps debug/info/warn/error in any case; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup (re)builds the logger from opts and installs it as slog's default.
func (m *SlogManager) Setup(opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level), ReplaceAttr: utcTime}
	m.provider = opts.Provider

	var handlers []slog.Handler
	if !opts.Quiet {
		console := opts.Console
		if console == nil {
			console = os.Stdout
		}
		handlers = append(handlers, slog.NewTextHandler(console, hopts))
	}
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, hopts))
	}
	if opts.Provider != nil {
		name := opts.ServiceName
		if name == "" {
			name = "mocaprig"
		}
		handlers = append(handlers, otelslog.NewHandler(name, otelslog.WithLoggerProvider(opts.Provider)))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}
	m.logger = slog.New(h)
	slog.SetDefault(m.logger)
	m.logger.Debug("Logging initialized", "level", hopts.Level.Level().String())
	return m.logger
}

// Logger falls back to slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
