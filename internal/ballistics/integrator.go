package ballistics

import "math"

// Impact describes a ground contact: the exact flight time and downrange
// distance of the crossing. It is a plain value handed back to the caller;
// the integrator keeps no reference to whoever launched the projectile.
type Impact struct {
	Time float64
	X    float64
}

// Integrator advances projectile states with a fixed-step semi-implicit
// scheme. Gravity is explicit configuration, not a package global.
type Integrator struct {
	Gravity float64 // m/s², positive down
}

// Step advances st by dt seconds using air density (kg/m³) for drag.
// Pass density 0 when air resistance is off; drag then contributes exactly
// zero force.
//
// Order of operations, kept deliberately strict:
//
//  1. drag force from the previous step's velocity and scalar speed
//  2. accelerations from that force and gravity
//  3. candidate position from the OLD velocity plus 0.5·a·dt²
//  4. candidate velocity from a·dt
//  5. ground crossing resolved analytically from the pre-step state
//
// When the candidate height drops to or below zero the state lands: position
// snaps to the resolved crossing, velocity and acceleration are zeroed, and
// the returned Impact is valid. A state that has already reached ground is
// never advanced.
func (in Integrator) Step(st *State, dt, density float64) (Impact, bool) {
	if st.ReachedGround {
		return Impact{}, false
	}

	var fx, fy float64
	if density > 0 {
		area := math.Pi * st.Diameter * st.Diameter / 4
		factor := 0.5 * density * area * st.DragCoefficient * st.Speed
		fx = factor * st.VX
		fy = factor * st.VY
	}

	ax := -fx / st.Mass
	ay := -in.Gravity - fy/st.Mass

	newX := st.X + st.VX*dt + 0.5*ax*dt*dt
	newY := st.Y + st.VY*dt + 0.5*ay*dt*dt
	newVX := st.VX + ax*dt
	newVY := st.VY + ay*dt

	if newY <= 0 {
		tau := timeToGround(st.Y, st.VY, ay)
		landX := st.X + st.VX*tau + 0.5*ax*tau*tau
		st.X = landX
		st.Y = 0
		st.VX, st.VY = 0, 0
		st.AX, st.AY = 0, 0
		st.Speed = 0
		st.Time += tau
		st.ReachedGround = true
		return Impact{Time: st.Time, X: landX}, true
	}

	st.X, st.Y = newX, newY
	st.VX, st.VY = newVX, newVY
	st.AX, st.AY = ax, ay
	st.Speed = math.Hypot(newVX, newVY)
	st.Time += dt
	return Impact{}, false
}
