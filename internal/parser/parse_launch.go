package parser

import (
	"fmt"
	"strconv"

	"github.com/rangelab/trajector/internal/ballistics"
	"github.com/rangelab/trajector/internal/engine"
	"github.com/rangelab/trajector/internal/util"
)

// ParseLaunch parses launch data into a validated launch configuration.
// Two layouts are accepted:
//
//	numeric: [height, angle, speed, mass, diameter, dragCoefficient, airResistance]
//	preset:  [presetName, height, angle, speed, airResistance]
//
// The preset form takes the body parameters from the catalog.
func (p *Parser) ParseLaunch(data []string) (ballistics.Config, error) {
	var cfg ballistics.Config

	// fix received data
	for i, v := range data {
		data[i] = util.Unquote(v)
	}

	switch len(data) {
	case 7:
		height, err := parseFinite("height", data[0])
		if err != nil {
			return cfg, err
		}
		angle, err := parseFinite("angle", data[1])
		if err != nil {
			return cfg, err
		}
		speed, err := parseFinite("speed", data[2])
		if err != nil {
			return cfg, err
		}
		mass, err := parseFinite("mass", data[3])
		if err != nil {
			return cfg, err
		}
		diameter, err := parseFinite("diameter", data[4])
		if err != nil {
			return cfg, err
		}
		drag, err := parseFinite("dragCoefficient", data[5])
		if err != nil {
			return cfg, err
		}
		airResistance, err := strconv.ParseBool(data[6])
		if err != nil {
			return cfg, fmt.Errorf("error converting airResistance to bool: %w", err)
		}
		cfg = ballistics.Config{
			InitialHeight:   height,
			Angle:           angle,
			Speed:           speed,
			Mass:            mass,
			Diameter:        diameter,
			DragCoefficient: drag,
			AirResistance:   airResistance,
		}

	case 5:
		body, ok := ballistics.Preset(data[0])
		if !ok {
			return cfg, fmt.Errorf("unknown preset %q", data[0])
		}
		height, err := parseFinite("height", data[1])
		if err != nil {
			return cfg, err
		}
		angle, err := parseFinite("angle", data[2])
		if err != nil {
			return cfg, err
		}
		speed, err := parseFinite("speed", data[3])
		if err != nil {
			return cfg, err
		}
		airResistance, err := strconv.ParseBool(data[4])
		if err != nil {
			return cfg, fmt.Errorf("error converting airResistance to bool: %w", err)
		}
		cfg = body.Apply(ballistics.Config{
			InitialHeight: height,
			Angle:         angle,
			Speed:         speed,
			AirResistance: airResistance,
		})

	default:
		return cfg, fmt.Errorf("launch needs 7 (numeric) or 5 (preset) arguments, got %d", len(data))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseAdjust parses mid-flight parameter changes.
// Layout: [mass, diameter, dragCoefficient, airResistance].
func (p *Parser) ParseAdjust(data []string) (engine.Adjust, error) {
	var adj engine.Adjust

	// fix received data
	for i, v := range data {
		data[i] = util.Unquote(v)
	}

	if len(data) < 4 {
		return adj, fmt.Errorf("adjust needs 4 arguments, got %d", len(data))
	}

	mass, err := parseFinite("mass", data[0])
	if err != nil {
		return adj, err
	}
	diameter, err := parseFinite("diameter", data[1])
	if err != nil {
		return adj, err
	}
	drag, err := parseFinite("dragCoefficient", data[2])
	if err != nil {
		return adj, err
	}
	airResistance, err := strconv.ParseBool(data[3])
	if err != nil {
		return adj, fmt.Errorf("error converting airResistance to bool: %w", err)
	}

	adj = engine.Adjust{
		Mass:            mass,
		Diameter:        diameter,
		DragCoefficient: drag,
		AirResistance:   airResistance,
	}

	check := ballistics.Config{
		Mass:            adj.Mass,
		Diameter:        adj.Diameter,
		DragCoefficient: adj.DragCoefficient,
	}
	if err := check.Validate(); err != nil {
		return adj, err
	}
	return adj, nil
}
