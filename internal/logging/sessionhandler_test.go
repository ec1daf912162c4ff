package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionHandler_StampsLiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	live := func() []slog.Attr {
		return []slog.Attr{slog.String("currentSession", "Evening Qual")}
	}

	slog.New(NewSessionHandler(slog.NewTextHandler(&buf, nil), live)).Info("probe armed")

	assert.Contains(t, buf.String(), `currentSession="Evening Qual"`)
}

func TestSessionHandler_NilProvider(t *testing.T) {
	s := &sink{}
	slog.New(NewSessionHandler(s, nil)).Info("plain")
	assert.Equal(t, []string{"plain"}, s.entries)
}

func TestSessionHandler_WithAttrsKeepsProvider(t *testing.T) {
	var buf bytes.Buffer
	live := func() []slog.Attr {
		return []slog.Attr{slog.Uint64("currentSessionID", 9)}
	}

	h := NewSessionHandler(slog.NewTextHandler(&buf, nil), live)
	slog.New(h.WithAttrs([]slog.Attr{slog.String("backend", "sqlite")})).Info("flushed")

	out := buf.String()
	assert.Contains(t, out, "backend=sqlite")
	assert.Contains(t, out, "currentSessionID=9")
}

func TestSessionHandler_WithGroupKeepsProvider(t *testing.T) {
	var buf bytes.Buffer
	live := func() []slog.Attr {
		return []slog.Attr{slog.Bool("usingLocalDB", true)}
	}

	h := NewSessionHandler(slog.NewTextHandler(&buf, nil), live)
	slog.New(h.WithGroup("write")).Info("batched", "rows", 40)

	out := buf.String()
	assert.Contains(t, out, "write.rows=40")
	// Live attrs are stamped during Handle, after the group opens.
	assert.Contains(t, out, "write.usingLocalDB=true")
}
