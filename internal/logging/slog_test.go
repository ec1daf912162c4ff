package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// swapStdout points the package console seam at a buffer until the test
// ends.
func swapStdout(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	orig := osStdout
	osStdout = &buf
	t.Cleanup(func() { osStdout = orig })
	return &buf
}

func TestSetup_FileSilencesConsole(t *testing.T) {
	console := swapStdout(t)

	var file bytes.Buffer
	m := NewManager()
	m.Setup(&file, "info", nil)
	m.Logger().Info("trajectory 12 airborne")

	assert.Contains(t, file.String(), "trajectory 12 airborne")
	// Setup's own "Log pipeline ready" line goes to the file too.
	assert.Empty(t, console.String())
}

func TestSetup_ConsoleFallback(t *testing.T) {
	console := swapStdout(t)

	m := NewManager()
	m.Setup(nil, "info", nil)
	m.Logger().Info("no log file yet")

	assert.Contains(t, console.String(), "no log file yet")
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		debugShown bool
	}{
		{"debug", true},
		{"info", false},
	}
	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewManager()
			m.Setup(&buf, tc.level, nil)

			m.Logger().Debug("tick applied")
			m.Logger().Info("launch accepted")

			assert.Equal(t, tc.debugShown, bytes.Contains(buf.Bytes(), []byte("tick applied")))
			assert.Contains(t, buf.String(), "launch accepted")
		})
	}
}

func TestSetup_SwapsSinks(t *testing.T) {
	var startup, sessionLog bytes.Buffer
	m := NewManager()

	m.Setup(&startup, "info", nil)
	m.Logger().Info("before swap")

	m.Setup(&sessionLog, "info", nil)
	m.Logger().Info("after swap")

	assert.Contains(t, startup.String(), "before swap")
	assert.NotContains(t, startup.String(), "after swap", "old sink must not receive new records")
	assert.Contains(t, sessionLog.String(), "after swap")
}

func TestSetup_DynamicSessionContext(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager()
	m.GetSessionName = func() string { return "Morning Range" }
	m.GetSessionID = func() uint { return 7 }
	m.IsUsingLocalDB = func() bool { return true }
	m.Setup(&buf, "info", nil)

	m.Logger().Info("launch accepted")

	output := buf.String()
	assert.Contains(t, output, `currentSession="Morning Range"`)
	assert.Contains(t, output, "currentSessionID=7")
	assert.Contains(t, output, "usingLocalDB=true")
	assert.NotContains(t, output, "statusMonitorActive", "unset callbacks should not add attributes")
}

func TestSetup_ContextCallbacksSetAfterSetup(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager()
	m.Setup(&buf, "info", nil)

	// Callbacks are evaluated per record, so wiring them after Setup works.
	m.GetSessionName = func() string { return "Late Bind" }
	m.Logger().Info("sampled")

	assert.Contains(t, buf.String(), `currentSession="Late Bind"`)
}

func TestSetup_BridgesToOTel(t *testing.T) {
	provider := sdklog.NewLoggerProvider() // no exporter; exercises the bridge path

	var buf bytes.Buffer
	m := NewManager()
	m.Setup(&buf, "warn", provider)

	m.Logger().Warn("bridge online")
	assert.Contains(t, buf.String(), "bridge online")
}

func TestLogger_FallsBackToDefault(t *testing.T) {
	m := NewManager()
	assert.Equal(t, slog.Default(), m.Logger())
}

func TestFlush(t *testing.T) {
	m := NewManager()
	assert.NoError(t, m.Flush(context.Background()), "flush without provider is a no-op")

	var buf bytes.Buffer
	m.Setup(&buf, "info", sdklog.NewLoggerProvider())
	assert.NoError(t, m.Flush(context.Background()))
}

func TestWriteLog_Levels(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager()
	m.Setup(&buf, "debug", nil)

	for _, level := range []string{"debug", "info", "warn", "error", "mystery"} {
		buf.Reset()
		m.WriteLog("recordLanding", "range went cold", level)

		line := buf.String()
		assert.Contains(t, line, "range went cold", level)
		assert.Contains(t, line, "function=recordLanding", level)
	}
}

func TestWriteLog_BeforeSetup(t *testing.T) {
	m := NewManager()
	// No sinks yet; must not panic.
	m.WriteLog("recordLanding", "range went cold", "info")
}

func TestLevelParsing(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"warn+1":  slog.LevelWarn + 1,
		"":        slog.LevelInfo,
		"trace":   slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "parseLevel(%q)", in)
	}
}
