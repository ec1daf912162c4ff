package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// ConsoleConfig configures the zerolog console logger.
type ConsoleConfig struct {
	Level       string
	File        io.Writer    // optional line-format copy
	GelfAddress string       // optional Graylog target, "" disables
	Hook        zerolog.Hook // optional per-event context
}

// NewConsole builds the zerolog logger used by the CLI tools and by early
// startup, before the slog pipeline owns the log file. Writes colored
// console output to stdout, a plain copy to File, and GELF to Graylog
// when an address is configured.
func NewConsole(cfg ConsoleConfig) (zerolog.Logger, error) {
	var lvl zerolog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		lvl = zerolog.DebugLevel
	case "INFO":
		lvl = zerolog.InfoLevel
	case "WARN":
		lvl = zerolog.WarnLevel
	case "ERROR":
		lvl = zerolog.ErrorLevel
	case "TRACE":
		lvl = zerolog.TraceLevel
	default:
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
	}
	if cfg.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        cfg.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}
	if cfg.GelfAddress != "" {
		gelfWriter, err := gelf.NewWriter(cfg.GelfAddress)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to create gelf writer: %w", err)
		}
		writers = append(writers, gelfWriter)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	if cfg.Hook != nil {
		logger = logger.Hook(cfg.Hook)
	}
	return logger, nil
}

// NewTraceSampler derives a burst-sampled logger for per-step diagnostics.
// Allows max 5 entries per 10 seconds, once reached, samples 1 in 100.
func NewTraceSampler(base zerolog.Logger) zerolog.Logger {
	return base.With().
		Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}
