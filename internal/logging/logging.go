package logging

import (
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config describes logger runtime configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	TimeFormat  string `mapstructure:"time_format"`
	Caller      bool   `mapstructure:"caller"`
	PrettyPrint bool   `mapstructure:"pretty"`
}

// NewLogger constructs a zerolog logger from config. All output passes through
// a redacting writer so Telegram bot tokens never reach the log stream.
func NewLogger(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
		level = parsed
	}

	writer := &redactWriter{next: logWriter(cfg)}
	logger := zerolog.New(writer).Level(level)
	builder := logger.With().Timestamp()
	if cfg.Caller {
		builder = builder.Caller()
	}

	return builder.Logger()
}

func logWriter(cfg Config) io.Writer {
	if cfg.PrettyPrint || strings.EqualFold(cfg.Format, "console") {
		return zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}
	return os.Stdout
}

var (
	// bot<id>:<secret> as it appears inside Bot API URLs.
	botTokenURLPattern = regexp.MustCompile(`(api\.telegram\.org/bot)[^/\s"]+`)
	// Bare tokens of the 123456789:AA... shape.
	botTokenPattern = regexp.MustCompile(`\b\d{8,}:[A-Za-z0-9_-]{20,}\b`)
)

// redactWriter masks Telegram bot tokens before a log line is written out.
type redactWriter struct {
	next io.Writer
}

func (w *redactWriter) Write(p []byte) (int, error) {
	cleaned := botTokenURLPattern.ReplaceAll(p, []byte("${1}[REDACTED]"))
	cleaned = botTokenPattern.ReplaceAll(cleaned, []byte("[REDACTED]"))
	if _, err := w.next.Write(cleaned); err != nil {
		return 0, err
	}
	// Report the caller's length so zerolog does not see a short write when
	// redaction shrinks the line.
	return len(p), nil
}
