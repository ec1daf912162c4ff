// Package ballistics implements the 2-D point-mass flight model: launch
// configuration, projectile state, and the fixed-step integrator with
// optional quadratic air drag.
package ballistics

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidHeight   = errors.New("initial height must be finite and >= 0")
	ErrInvalidAngle    = errors.New("launch angle must be finite")
	ErrInvalidSpeed    = errors.New("launch speed must be finite and >= 0")
	ErrInvalidMass     = errors.New("mass must be finite and > 0")
	ErrInvalidDiameter = errors.New("diameter must be finite and > 0")
	ErrInvalidDrag     = errors.New("drag coefficient must be finite and >= 0")
)

// Config holds the launch parameters for a single flight. Callers are
// expected to Validate before constructing state from it; wire input goes
// through the parser layer which does exactly that.
type Config struct {
	InitialHeight   float64 `json:"initialHeight"`   // m above ground
	Angle           float64 `json:"angle"`           // degrees from horizontal
	Speed           float64 `json:"speed"`           // m/s muzzle speed
	Mass            float64 `json:"mass"`            // kg
	Diameter        float64 `json:"diameter"`        // m
	DragCoefficient float64 `json:"dragCoefficient"` // dimensionless
	AirResistance   bool    `json:"airResistance"`
	Preset          string  `json:"preset,omitempty"`
}

// Validate checks every numeric parameter for finiteness and range.
func (c Config) Validate() error {
	if bad(c.InitialHeight) || c.InitialHeight < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidHeight, c.InitialHeight)
	}
	if bad(c.Angle) {
		return fmt.Errorf("%w: got %v", ErrInvalidAngle, c.Angle)
	}
	if bad(c.Speed) || c.Speed < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidSpeed, c.Speed)
	}
	if bad(c.Mass) || c.Mass <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidMass, c.Mass)
	}
	if bad(c.Diameter) || c.Diameter <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidDiameter, c.Diameter)
	}
	if bad(c.DragCoefficient) || c.DragCoefficient < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidDrag, c.DragCoefficient)
	}
	return nil
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// State is the live kinematic state of one projectile. Positions are meters
// from the launch point, Y up. The physical parameters travel with the state
// because they can be adjusted mid-flight.
type State struct {
	X, Y    float64
	VX, VY  float64
	AX, AY  float64
	Speed   float64 // scalar |v|, maintained by the integrator
	Time    float64 // elapsed flight time, seconds

	Mass            float64
	Diameter        float64
	DragCoefficient float64
	AirResistance   bool

	ReachedGround bool
}

// NewState seeds a State from a launch configuration: position (0, height),
// velocity decomposed from speed and angle, zero acceleration, time zero.
func NewState(cfg Config) *State {
	rad := cfg.Angle * math.Pi / 180
	st := &State{
		Y:               cfg.InitialHeight,
		VX:              cfg.Speed * math.Cos(rad),
		VY:              cfg.Speed * math.Sin(rad),
		Mass:            cfg.Mass,
		Diameter:        cfg.Diameter,
		DragCoefficient: cfg.DragCoefficient,
		AirResistance:   cfg.AirResistance,
	}
	st.Speed = math.Hypot(st.VX, st.VY)
	return st
}
