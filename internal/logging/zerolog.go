package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseZerologLevel converts a string log level to a zerolog.Level.
func ParseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewComponentLogger builds a zerolog.Logger for the subsystems that run
// on zerolog (database, influx, stream, dispatcher). Records land in the
// log file and, when configured, graylog; the console stays free for
// interactive output.
func NewComponentLogger(component string, file io.Writer, gelf io.Writer, level string) zerolog.Logger {
	writers := make([]io.Writer, 0, 2)
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}
	if gelf != nil {
		writers = append(writers, gelf)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseZerologLevel(level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// NewBurstSampled wraps l with burst sampling for logging on the per-tick
// path, where one detached chain would otherwise produce a line every
// interval. Allows 5 entries per 10 seconds, then 1 in 100.
func NewBurstSampled(l zerolog.Logger) zerolog.Logger {
	return l.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}
