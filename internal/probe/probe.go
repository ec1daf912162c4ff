// Package probe implements the tracer instrument: a point query that finds
// the sample a field tracer placed at (x, y) would lock onto.
package probe

import (
	"math"

	"github.com/rangelab/trajector/internal/trajectory"
)

// Tracer reads trajectory samples around a point. Both knobs are explicit
// configuration: SensingRadius in meters, MinorIntervalMs the sample-grid
// interval that makes a mid-flight sample readable.
type Tracer struct {
	SensingRadius   float64
	MinorIntervalMs int
}

// Reading is a successful probe result.
type Reading struct {
	TrajectoryID uint16
	Sample       trajectory.Sample
	QueryX       float64
	QueryY       float64
}

// Read searches the set newest-first and returns the first match:
//
//   - a trajectory whose apex lies within the sensing radius matches with
//     the apex, ahead of anything else on that trajectory;
//   - otherwise the trajectory's single nearest sample matches only when it
//     is both within the radius and readable. A non-readable nearest sample
//     disqualifies the whole trajectory rather than falling back to the
//     next-nearest.
func (tr Tracer) Read(x, y float64, set *trajectory.Set) (Reading, bool) {
	var out Reading
	found := false
	radius2 := tr.SensingRadius * tr.SensingRadius

	set.ForEachNewest(func(t *trajectory.Trajectory) bool {
		if apex, ok := t.Apex(); ok && dist2(apex, x, y) <= radius2 {
			out = Reading{TrajectoryID: t.ID, Sample: apex, QueryX: x, QueryY: y}
			found = true
			return true
		}
		near, ok := t.Nearest(x, y)
		if !ok {
			return false
		}
		if dist2(near, x, y) <= radius2 && tr.Readable(near) {
			out = Reading{TrajectoryID: t.ID, Sample: near, QueryX: x, QueryY: y}
			found = true
			return true
		}
		return false
	})

	return out, found
}

// Readable reports whether a tracer can display the sample: apexes and
// grounded samples always, mid-flight samples only when their flight time
// sits exactly on the minor interval grid. Times are compared in rounded
// milliseconds so the fixed-step grid survives float accumulation.
func (tr Tracer) Readable(s trajectory.Sample) bool {
	if s.Apex || s.Y == 0 {
		return true
	}
	if tr.MinorIntervalMs <= 0 {
		return false
	}
	ms := int64(math.Round(s.FlightTime * 1000))
	return ms%int64(tr.MinorIntervalMs) == 0
}

func dist2(s trajectory.Sample, x, y float64) float64 {
	dx, dy := s.X-x, s.Y-y
	return dx*dx + dy*dy
}
