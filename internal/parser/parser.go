package parser

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
)

// parseUint reads an unsigned integer that the range engine may have
// serialized with a float tail ("32" as well as "32.00").
func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f >= 1<<64 || math.Trunc(f) != f {
		return 0, fmt.Errorf("%q is not a whole non-negative number", s)
	}
	return uint64(f), nil
}

// parseFinite parses a string into a finite float64, rejecting NaN and infinities.
func parseFinite(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("error converting %s to float: %w", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be finite, got %q", name, s)
	}
	return f, nil
}

// Parser provides pure []string -> typed value conversion for the command
// protocol. It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger

	// Fixed at construction.
	engineVersion  string
	serviceVersion string
}

// New builds a parser that stamps parsed records with the given versions.
func New(logger *slog.Logger, engineVersion, serviceVersion string) *Parser {
	return &Parser{
		logger:         logger,
		engineVersion:  engineVersion,
		serviceVersion: serviceVersion,
	}
}
