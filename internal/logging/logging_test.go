package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePaths(t *testing.T) {
	start := time.Date(2026, 8, 25, 14, 5, 9, 0, time.UTC)

	assert.Equal(t,
		filepath.Join("trajlogs", "trajector.20260825_140509.log"),
		LogFilePath("trajlogs", "trajector", start))

	assert.Equal(t,
		filepath.Join("trajlogs", "trajector.20260825_140509.log"),
		LogFilePath("./trajlogs", "trajector", start),
		"Join cleans the leading dot")

	abs := filepath.Join("/var", "log", "trajector")
	assert.Equal(t,
		filepath.Join(abs, "trajector.20260825_140509.log"),
		LogFilePath(abs, "trajector", start))

	assert.Equal(t,
		filepath.Join("trajlogs", "trajector.20260825_140509.otel.jsonl"),
		TraceLogFilePath("trajlogs", "trajector", start),
		"trace log sits next to the main log")
}
