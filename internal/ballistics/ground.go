package ballistics

import "math"

// timeToGround solves y + vy·τ + 0.5·ay·τ² = 0 for the time into the step at
// which the projectile crosses ground level, picking the quadratic root
// nearer zero. A negative discriminant clamps τ to 0 so the caller lands the
// projectile at its current downrange position instead of propagating NaN.
func timeToGround(y, vy, ay float64) float64 {
	if ay == 0 {
		// Degenerate linear fall, only reachable when drag exactly cancels
		// gravity at the crossing step.
		if vy >= 0 {
			return 0
		}
		return -y / vy
	}

	disc := vy*vy - 2*ay*y
	if disc < 0 {
		return 0
	}
	return (-math.Sqrt(disc) - vy) / ay
}
