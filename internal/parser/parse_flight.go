package parser

import (
	"fmt"
	"math"

	"github.com/rangelab/trajector/internal/util"
)

// ParseTick parses a world tick duration in seconds. Layout: [dt].
func (p *Parser) ParseTick(data []string) (float64, error) {
	// fix received data
	for i, v := range data {
		data[i] = util.Unquote(v)
	}

	if len(data) < 1 {
		return 0, fmt.Errorf("tick needs 1 argument, got %d", len(data))
	}

	dt, err := parseFinite("tick duration", data[0])
	if err != nil {
		return 0, err
	}
	if dt <= 0 {
		return 0, fmt.Errorf("tick duration must be > 0, got %v", dt)
	}
	return dt, nil
}

// ParseEnv parses an environment change. Layout: [gravity, altitude].
func (p *Parser) ParseEnv(data []string) (gravity, altitude float64, err error) {
	// fix received data
	for i, v := range data {
		data[i] = util.Unquote(v)
	}

	if len(data) < 2 {
		return 0, 0, fmt.Errorf("env needs 2 arguments, got %d", len(data))
	}

	gravity, err = parseFinite("gravity", data[0])
	if err != nil {
		return 0, 0, err
	}
	if gravity <= 0 {
		return 0, 0, fmt.Errorf("gravity must be > 0, got %v", gravity)
	}

	altitude, err = parseFinite("altitude", data[1])
	if err != nil {
		return 0, 0, err
	}
	if altitude < 0 {
		return 0, 0, fmt.Errorf("altitude must be >= 0, got %v", altitude)
	}

	return gravity, altitude, nil
}

// ParseProbe parses a tracer probe query. Layout: [x, y].
func (p *Parser) ParseProbe(data []string) (x, y float64, err error) {
	// fix received data
	for i, v := range data {
		data[i] = util.Unquote(v)
	}

	if len(data) < 2 {
		return 0, 0, fmt.Errorf("probe needs 2 arguments, got %d", len(data))
	}

	x, err = parseFinite("probe x", data[0])
	if err != nil {
		return 0, 0, err
	}
	y, err = parseFinite("probe y", data[1])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// ParseNearest parses a nearest-sample query. Layout: [trajectoryID, x, y].
func (p *Parser) ParseNearest(data []string) (id uint16, x, y float64, err error) {
	// fix received data
	for i, v := range data {
		data[i] = util.Unquote(v)
	}

	if len(data) < 3 {
		return 0, 0, 0, fmt.Errorf("nearest needs 3 arguments, got %d", len(data))
	}

	rawID, err := parseUint(data[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("error converting trajectoryID to uint: %w", err)
	}
	if rawID > math.MaxUint16 {
		return 0, 0, 0, fmt.Errorf("trajectoryID %d out of range", rawID)
	}
	id = uint16(rawID)

	x, err = parseFinite("query x", data[1])
	if err != nil {
		return 0, 0, 0, err
	}
	y, err = parseFinite("query y", data[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return id, x, y, nil
}
