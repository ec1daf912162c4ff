// Package trajectory holds the per-flight sample log and the ordered set of
// flights a session accumulates. Samples are append-only: they are recorded
// once per committed integration step and never mutated afterwards.
package trajectory

import (
	"math"

	"github.com/rangelab/trajector/internal/ballistics"
)

// Sample is one recorded point of a flight. FlightTime is seconds since
// launch; a sample on the ground carries Y == 0 exactly.
type Sample struct {
	FlightTime float64
	X, Y       float64
	VX, VY     float64
	Apex       bool
}

// Trajectory is a single flight: its launch configuration, live state, and
// the append-only sample log. A trajectory belongs to exactly one session
// and is identified by its creation-order ID.
type Trajectory struct {
	ID              uint16
	Config          ballistics.Config
	State           *ballistics.State
	ChangedInMidAir bool

	samples   []Sample
	apexIndex int
}

// New creates a trajectory from a validated launch configuration and records
// the initial sample at flight time zero.
func New(id uint16, cfg ballistics.Config) *Trajectory {
	t := &Trajectory{
		ID:        id,
		Config:    cfg,
		State:     ballistics.NewState(cfg),
		apexIndex: -1,
	}
	st := t.State
	t.Append(Sample{X: st.X, Y: st.Y, VX: st.VX, VY: st.VY})
	return t
}

// Append records a sample. Apex bookkeeping happens inline: when the
// previously recorded vertical velocity was positive and the new one is not,
// the sample completing that step becomes the trajectory's apex sample. The
// first such flip wins; a trajectory has at most one apex.
func (t *Trajectory) Append(s Sample) {
	if len(t.samples) > 0 && t.apexIndex < 0 {
		prev := t.samples[len(t.samples)-1]
		if prev.VY > 0 && s.VY <= 0 {
			s.Apex = true
			t.apexIndex = len(t.samples)
		}
	}
	t.samples = append(t.samples, s)
}

// AppendLanding records the synthetic ground-contact sample without apex
// bookkeeping. The resolved impact point has its vertical velocity zeroed,
// which would read as a flip on a flight cut short while still ascending;
// the landing point is never the apex.
func (t *Trajectory) AppendLanding(s Sample) {
	t.samples = append(t.samples, s)
}

// Nearest returns the sample closest to (x, y) by Euclidean distance. Ties
// resolve to the later flight time: the scan compares with <= and samples
// are ordered by strictly increasing time. Returns false on an empty log.
func (t *Trajectory) Nearest(x, y float64) (Sample, bool) {
	if len(t.samples) == 0 {
		return Sample{}, false
	}
	best := 0
	bestDist := math.Inf(1)
	for i, s := range t.samples {
		dx, dy := s.X-x, s.Y-y
		if d := dx*dx + dy*dy; d <= bestDist {
			bestDist = d
			best = i
		}
	}
	return t.samples[best], true
}

// Apex returns the apex sample if one has been recorded.
func (t *Trajectory) Apex() (Sample, bool) {
	if t.apexIndex < 0 {
		return Sample{}, false
	}
	return t.samples[t.apexIndex], true
}

// Len returns the number of recorded samples.
func (t *Trajectory) Len() int { return len(t.samples) }

// At returns the i-th sample in record order.
func (t *Trajectory) At(i int) Sample { return t.samples[i] }

// Last returns the most recent sample.
func (t *Trajectory) Last() (Sample, bool) {
	if len(t.samples) == 0 {
		return Sample{}, false
	}
	return t.samples[len(t.samples)-1], true
}

// Samples returns the underlying log. Callers must treat it as read-only.
func (t *Trajectory) Samples() []Sample { return t.samples }
