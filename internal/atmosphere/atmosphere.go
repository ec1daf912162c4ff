// Package atmosphere provides the piecewise air density model used for drag.
//
// The model follows the NASA Glenn "Earth Atmosphere Model": three bands
// (troposphere, lower stratosphere, upper stratosphere) each with their own
// temperature and pressure fits, combined through the equation of state.
// Inputs are altitude above sea level in meters; output is density in kg/m³.
package atmosphere

import "math"

// Band boundaries in meters above sea level.
const (
	TroposphereTop       = 11000.0
	LowerStratosphereTop = 25000.0
)

// gasFactor is R_specific for air expressed in kPa·m³/(kg·K).
const gasFactor = 0.2869

// Density returns air density in kg/m³ at the given altitude in meters.
// The altitude is the launch-site environment altitude; it is held constant
// for the duration of a flight rather than tracked per projectile.
func Density(altitude float64) float64 {
	var temperature, pressure float64

	switch {
	case altitude < TroposphereTop:
		temperature = 15.04 - 0.00649*altitude
		pressure = 101.29 * math.Pow((temperature+273.1)/288.08, 5.256)
	case altitude < LowerStratosphereTop:
		temperature = -56.46
		pressure = 22.65 * math.Exp(1.73-0.000157*altitude)
	default:
		temperature = -131.21 + 0.00299*altitude
		pressure = 2.488 * math.Pow((temperature+273.1)/216.6, -11.388)
	}

	return pressure / (gasFactor * (temperature + 273.1))
}
