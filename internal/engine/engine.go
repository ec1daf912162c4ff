// Package engine orchestrates a session's flights: launches, fixed-step
// world ticks, mid-air adjustments, probe queries, and erase. All state
// lives behind one mutex; results flow out as plain values so storage,
// metrics, and scoring stay decoupled from the simulation loop.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rangelab/trajector/internal/atmosphere"
	"github.com/rangelab/trajector/internal/ballistics"
	"github.com/rangelab/trajector/internal/probe"
	"github.com/rangelab/trajector/internal/trajectory"
)

var (
	ErrInvalidTick       = errors.New("tick duration must be finite and > 0")
	ErrUnknownTrajectory = errors.New("no trajectory with that ID")
)

// Settings are the explicit simulation constants. Nothing here is a
// package global; the config layer builds one and hands it over.
type Settings struct {
	Gravity         float64 // m/s²
	Altitude        float64 // launch-site altitude for the density model, m
	StepMs          int     // base integration step, milliseconds
	MinorIntervalMs int     // readable-sample grid for the tracer
	SensingRadius   float64 // tracer pickup radius, m
}

// DefaultSettings returns the stock constants: Earth gravity at sea level,
// 25 ms steps, 50 ms tracer grid, 0.2 m sensing radius.
func DefaultSettings() Settings {
	return Settings{
		Gravity:         9.81,
		Altitude:        0,
		StepMs:          25,
		MinorIntervalMs: 50,
		SensingRadius:   0.2,
	}
}

// Landing reports one flight reaching the ground. It is emitted exactly
// once per flight and carries no reference back into the engine.
type Landing struct {
	TrajectoryID uint16
	FlightTime   float64
	X            float64
}

// TrajectorySample pairs a recorded sample with its flight.
type TrajectorySample struct {
	TrajectoryID uint16
	Sample       trajectory.Sample
}

// TickResult is everything one Tick produced, in step order.
type TickResult struct {
	Steps    int
	Samples  []TrajectorySample
	Landings []Landing
}

// Adjust carries mid-flight parameter changes. Applying one to an airborne
// flight marks it as changed in mid-air.
type Adjust struct {
	Mass            float64
	Diameter        float64
	DragCoefficient float64
	AirResistance   bool
}

// FlightSnapshot is a copy of one flight's full record, taken under the
// engine lock so callers can persist it without racing the next tick.
type FlightSnapshot struct {
	ID              uint16
	Config          ballistics.Config
	ChangedInMidAir bool
	ReachedGround   bool
	Samples         []trajectory.Sample
	Apex            trajectory.Sample
	HasApex         bool
}

// Stats is a point-in-time census for monitoring.
type Stats struct {
	Trajectories int
	Airborne     int
	Landed       int
	NextID       uint16
	Residual     float64
}

// Engine drives the simulation. Wall-clock tick durations accumulate in a
// residual and the world only ever advances in whole base steps, so sample
// times stay on the millisecond grid the tracer's readability rule expects.
type Engine struct {
	mu       sync.Mutex
	settings Settings
	integ    ballistics.Integrator
	tracer   probe.Tracer
	set      *trajectory.Set
	defaults ballistics.Config
	residual float64
	nextID   uint16
}

// New builds an engine with the given constants and launch defaults.
func New(settings Settings, defaults ballistics.Config) *Engine {
	return &Engine{
		settings: settings,
		integ:    ballistics.Integrator{Gravity: settings.Gravity},
		tracer: probe.Tracer{
			SensingRadius:   settings.SensingRadius,
			MinorIntervalMs: settings.MinorIntervalMs,
		},
		set:      trajectory.NewSet(),
		defaults: defaults,
	}
}

// Launch validates cfg, creates the flight with its t=0 sample, and makes
// cfg the new launch default. Returns the creation-order ID.
func (e *Engine) Launch(cfg ballistics.Config) (uint16, error) {
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("launch rejected: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.set.Add(trajectory.New(id, cfg))
	e.defaults = cfg
	return id, nil
}

// Tick advances the world by dt seconds of playback time. dt is arbitrary
// (normal or slow-motion frames); whole base steps are taken and the
// remainder carries over to the next call.
func (e *Engine) Tick(dt float64) (TickResult, error) {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return TickResult{}, fmt.Errorf("%w: got %v", ErrInvalidTick, dt)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.residual += dt
	h := float64(e.settings.StepMs) / 1000

	var res TickResult
	for e.residual+1e-9 >= h {
		e.residual -= h
		res.Steps++
		e.stepWorld(h, &res)
	}
	return res, nil
}

// stepWorld advances every airborne flight by one base step, in creation
// order. Air density is evaluated once at the site altitude.
func (e *Engine) stepWorld(h float64, res *TickResult) {
	envDensity := atmosphere.Density(e.settings.Altitude)

	e.set.ForEach(func(t *trajectory.Trajectory) {
		st := t.State
		if st.ReachedGround {
			return
		}

		density := 0.0
		if st.AirResistance {
			density = envDensity
		}

		impact, landed := e.integ.Step(st, h, density)
		sample := trajectory.Sample{
			FlightTime: st.Time,
			X:          st.X,
			Y:          st.Y,
			VX:         st.VX,
			VY:         st.VY,
		}
		if landed {
			t.AppendLanding(sample)
		} else {
			t.Append(sample)
		}
		last, _ := t.Last()
		res.Samples = append(res.Samples, TrajectorySample{TrajectoryID: t.ID, Sample: last})
		if landed {
			res.Landings = append(res.Landings, Landing{
				TrajectoryID: t.ID,
				FlightTime:   impact.Time,
				X:            impact.X,
			})
		}
	})
}

// Adjust applies mid-flight parameter changes to every airborne flight and
// folds them into the launch defaults. Returns how many flights changed.
func (e *Engine) Adjust(adj Adjust) (int, error) {
	check := ballistics.Config{
		Mass:            adj.Mass,
		Diameter:        adj.Diameter,
		DragCoefficient: adj.DragCoefficient,
	}
	if err := check.Validate(); err != nil {
		return 0, fmt.Errorf("adjust rejected: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	e.set.ForEach(func(t *trajectory.Trajectory) {
		st := t.State
		if st.ReachedGround {
			return
		}
		st.Mass = adj.Mass
		st.Diameter = adj.Diameter
		st.DragCoefficient = adj.DragCoefficient
		st.AirResistance = adj.AirResistance
		t.ChangedInMidAir = true
		n++
	})

	e.defaults.Mass = adj.Mass
	e.defaults.Diameter = adj.Diameter
	e.defaults.DragCoefficient = adj.DragCoefficient
	e.defaults.AirResistance = adj.AirResistance
	e.defaults.Preset = ""
	return n, nil
}

// SetEnvironment changes gravity and site altitude from the next step on.
// Environment changes do not mark flights as changed in mid-air.
func (e *Engine) SetEnvironment(gravity, altitude float64) error {
	if math.IsNaN(gravity) || math.IsInf(gravity, 0) || gravity <= 0 {
		return fmt.Errorf("invalid gravity %v", gravity)
	}
	if math.IsNaN(altitude) || math.IsInf(altitude, 0) || altitude < 0 {
		return fmt.Errorf("invalid altitude %v", altitude)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings.Gravity = gravity
	e.settings.Altitude = altitude
	e.integ.Gravity = gravity
	return nil
}

// Probe runs a tracer read at (x, y) over the current set.
func (e *Engine) Probe(x, y float64) (probe.Reading, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracer.Read(x, y, e.set)
}

// Nearest returns the sample of flight id closest to (x, y), later flight
// time winning ties.
func (e *Engine) Nearest(id uint16, x, y float64) (trajectory.Sample, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.set.Get(id)
	if !ok {
		return trajectory.Sample{}, fmt.Errorf("%w: %d", ErrUnknownTrajectory, id)
	}
	s, ok := t.Nearest(x, y)
	if !ok {
		return trajectory.Sample{}, fmt.Errorf("%w: %d has no samples", ErrUnknownTrajectory, id)
	}
	return s, nil
}

// EraseAll discards every flight. The ID counter keeps counting; erasing is
// not a session reset.
func (e *Engine) EraseAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set.EraseAll()
}

// Reset starts a fresh world for a new session: empty set, zero residual,
// IDs from zero. Settings and launch defaults survive.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set = trajectory.NewSet()
	e.residual = 0
	e.nextID = 0
}

// Snapshot copies flight id's full record for persistence.
func (e *Engine) Snapshot(id uint16) (FlightSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.set.Get(id)
	if !ok {
		return FlightSnapshot{}, false
	}

	snap := FlightSnapshot{
		ID:              t.ID,
		Config:          t.Config,
		ChangedInMidAir: t.ChangedInMidAir,
		ReachedGround:   t.State.ReachedGround,
		Samples:         append([]trajectory.Sample(nil), t.Samples()...),
	}
	snap.Apex, snap.HasApex = t.Apex()
	return snap, true
}

// Defaults returns the current launch defaults.
func (e *Engine) Defaults() ballistics.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaults
}

// Environment returns the current gravity and altitude.
func (e *Engine) Environment() (gravity, altitude float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.Gravity, e.settings.Altitude
}

// Settings returns a copy of the active simulation constants.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Stats takes a monitoring census.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	landed := 0
	e.set.ForEach(func(t *trajectory.Trajectory) {
		if t.State.ReachedGround {
			landed++
		}
	})
	return Stats{
		Trajectories: e.set.Len(),
		Airborne:     e.set.Len() - landed,
		Landed:       landed,
		NextID:       e.nextID,
		Residual:     e.residual,
	}
}
