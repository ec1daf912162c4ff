package parser

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return New(slog.Default(), "1.0.0", "2.0.0")
}

func TestParseUint(t *testing.T) {
	valid := map[string]uint64{
		"7":        7,
		"0":        0,
		"7.00":     7,
		"12000.0":  12000,
		"65535":    65535,
		"65535.00": 65535,
	}
	for in, want := range valid {
		got, err := parseUint(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	// Fractional, negative, and non-numeric IDs are all rejected.
	for _, in := range []string{"3.5", "-4", "", "golf", "NaN"} {
		_, err := parseUint(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseFinite(t *testing.T) {
	valid := map[string]float64{
		"828.5": 828.5,
		"0":     0,
		"-12.5": -12.5,
		"1e3":   1000,
	}
	for in, want := range valid {
		got, err := parseFinite("muzzleVelocity", in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, in := range []string{"NaN", "+Inf", "-Inf", "", "fast"} {
		_, err := parseFinite("muzzleVelocity", in)
		assert.Error(t, err, "input %q", in)
	}
}
