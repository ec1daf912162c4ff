package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Seam for tests that capture console output.
var osStdout io.Writer = os.Stdout

// Manager owns the service logger. The Get*/Is* callbacks, when set,
// are evaluated per record and attached as attributes so every log line
// carries the current session state.
type Manager struct {
	logger   *slog.Logger
	otelLogs *sdklog.LoggerProvider

	GetSessionName  func() string
	GetSessionID    func() uint
	IsUsingLocalDB  func() bool
	IsStatusRunning func() bool
}

// NewManager returns a manager with no sinks; Logger falls back to
// slog.Default until Setup runs.
func NewManager() *Manager {
	return &Manager{}
}

// parseLevel maps a config string onto a slog.Level, defaulting to info.
// "trace" has no slog equivalent and lands on info too; the zerolog
// pipeline owns trace output.
func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// rfc3339Time rewrites the record timestamp as UTC RFC3339.
func rfc3339Time(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup points the logger at its sinks: the given file, or the console
// when file is nil, plus the OTel bridge when a provider is available.
// Safe to call again to swap sinks once the real log file exists.
func (m *Manager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	sink := osStdout
	if file != nil {
		sink = file
	}
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: rfc3339Time,
	}

	handlers := []slog.Handler{slog.NewTextHandler(sink, opts)}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("trajector", otelslog.WithLoggerProvider(provider)))
	}

	m.otelLogs = provider
	m.logger = slog.New(NewSessionHandler(NewMultiHandler(handlers...), m.contextAttrs))
	m.logger.Info("Log pipeline ready", "level", level)
}

// contextAttrs resolves the dynamic session attributes for one record.
func (m *Manager) contextAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	if m.GetSessionName != nil {
		attrs = append(attrs, slog.String("currentSession", m.GetSessionName()))
	}
	if m.GetSessionID != nil {
		attrs = append(attrs, slog.Uint64("currentSessionID", uint64(m.GetSessionID())))
	}
	if m.IsUsingLocalDB != nil {
		attrs = append(attrs, slog.Bool("usingLocalDB", m.IsUsingLocalDB()))
	}
	if m.IsStatusRunning != nil {
		attrs = append(attrs, slog.Bool("statusMonitorActive", m.IsStatusRunning()))
	}
	return attrs
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *Manager) Logger() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Flush pushes buffered records through the OTel bridge.
func (m *Manager) Flush(ctx context.Context) error {
	if m.otelLogs == nil {
		return nil
	}
	return m.otelLogs.ForceFlush(ctx)
}

// WriteLog records one line tagged with the originating component. The
// storage write paths use it where a full slog call site would be noise.
func (m *Manager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), parseLevel(level), data, "function", functionName)
}
