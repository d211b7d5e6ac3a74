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

// Indirection over os.Stdout so tests can capture console output.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager owns the slog pipeline: console or file output, optional
// graylog and OTel sinks, and per-record session context.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider kept for flushing on shutdown.
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates an empty logging manager. Logger() falls back to
// slog.Default until Setup runs.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// Option configures Setup.
type Option func(*setupConfig)

type setupConfig struct {
	file     io.Writer
	gelf     io.Writer
	provider *sdklog.LoggerProvider
	context  ContextProvider
}

// WithFile sends log records to w instead of the console. The console
// stays reserved for interactive command output once a log file exists.
func WithFile(w io.Writer) Option {
	return func(c *setupConfig) { c.file = w }
}

// WithGelf ships every record to a graylog endpoint as JSON.
func WithGelf(w io.Writer) Option {
	return func(c *setupConfig) { c.gelf = w }
}

// WithOTel bridges records into an OpenTelemetry logger provider.
func WithOTel(provider *sdklog.LoggerProvider) Option {
	return func(c *setupConfig) { c.provider = provider }
}

// WithContext appends dynamic attributes, typically the active recording
// session fields, to every record.
func WithContext(p ContextProvider) Option {
	return func(c *setupConfig) { c.context = p }
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the handler chain. Records go to the configured file, or to
// the console when no file is given, and additionally to graylog and OTel
// when those options are present.
func (m *SlogManager) Setup(level string, opts ...Option) {
	var cfg setupConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	lvl := parseLevel(level)
	m.logProvider = cfg.provider

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if cfg.file != nil {
		handlers = append(handlers, slog.NewTextHandler(cfg.file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if cfg.gelf != nil {
		handlers = append(handlers, slog.NewJSONHandler(cfg.gelf, handlerOpts))
	}

	if cfg.provider != nil {
		handlers = append(handlers, otelslog.NewHandler("route-tracker", otelslog.WithLoggerProvider(cfg.provider)))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if cfg.context != nil {
		handler = NewContextHandler(handler, cfg.context)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if a provider is attached.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
