package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rangelab/trajector/internal/dispatcher"
	"github.com/rangelab/trajector/internal/engine"
	"github.com/rangelab/trajector/internal/influx"
	"github.com/rangelab/trajector/internal/util"
	"github.com/rangelab/trajector/pkg/core"

	influxwrite "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Session lifecycle - sync (recording state must be settled before the
	// next command arrives)
	d.Register(":SESSION:START:", m.handleSessionStart, dispatcher.Logged())
	d.Register(":SESSION:END:", m.handleSessionEnd, dispatcher.Logged())

	// Launches - sync (trajectory IDs must be assigned before ticks and
	// probes reference them)
	d.Register(":LAUNCH:", m.handleLaunch, dispatcher.Logged())

	// High-volume world stepping - buffered
	d.Register(":TICK:", m.handleTick, dispatcher.Buffered(10000), dispatcher.Logged())

	// Mid-flight and environment changes - sync
	d.Register(":ADJUST:", m.handleAdjust, dispatcher.Logged())
	d.Register(":ENV:", m.handleEnv, dispatcher.Logged())

	// Tracer queries - sync (callers want the reading back)
	d.Register(":PROBE:", m.handleProbe, dispatcher.Logged())
	d.Register(":NEAREST:", m.handleNearest, dispatcher.Logged())

	// Range clearing - sync
	d.Register(":ERASE:", m.handleErase, dispatcher.Logged())

	// Metric feed - buffered
	d.Register(":METRIC:", m.handleMetric, dispatcher.Buffered(1000), dispatcher.Logged())
}

// handleSessionStart resets the world, applies the site environment, and
// opens a recording session in the backend. Returns the session UID.
func (m *Manager) handleSessionStart(e dispatcher.Event) (any, error) {
	sess, site, err := m.deps.ParserService.ParseSessionStart(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	// A new session gets a clean world: prior trajectories are discarded and
	// IDs restart from zero. Launch defaults and settings survive.
	m.deps.Engine.Reset()
	m.deps.LaunchCache.Reset()

	gravity, _ := m.deps.Engine.Environment()
	if err := m.deps.Engine.SetEnvironment(gravity, site.Altitude); err != nil {
		return nil, fmt.Errorf("failed to apply site altitude: %w", err)
	}

	settings := m.deps.Engine.Settings()
	sess.Gravity = settings.Gravity
	sess.StepMs = settings.StepMs

	if err := m.backend.StartSession(&sess, &site); err != nil {
		return nil, fmt.Errorf("failed to persist session start: %w", err)
	}

	m.deps.SessionContext.SetSession(&sess, &site)

	m.deps.LogManager.Logger().Info("Session started",
		"session", sess.Name, "site", site.Name, "uid", sess.UID)

	return sess.UID, nil
}

func (m *Manager) handleSessionEnd(e dispatcher.Event) (any, error) {
	if !m.deps.SessionContext.Active() {
		return nil, nil
	}

	if err := m.backend.EndSession(); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	m.deps.LogManager.Logger().Info("Session recording ended",
		"session", m.deps.SessionContext.GetSession().Name)

	return "ok", nil
}

// handleLaunch fires a projectile and returns its trajectory ID. The engine
// runs whether or not a session is active; only recording is session-gated.
func (m *Manager) handleLaunch(e dispatcher.Event) (any, error) {
	cfg, err := m.deps.ParserService.ParseLaunch(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to launch: %w", err)
	}

	id, err := m.deps.Engine.Launch(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to launch: %w", err)
	}

	launch := core.Launch{
		TrajectoryID:    id,
		Time:            time.Now(),
		Preset:          cfg.Preset,
		Mass:            cfg.Mass,
		Diameter:        cfg.Diameter,
		DragCoefficient: cfg.DragCoefficient,
		AirResistance:   cfg.AirResistance,
		InitialHeight:   cfg.InitialHeight,
		InitialAngle:    cfg.Angle,
		InitialSpeed:    cfg.Speed,
	}

	// Cache so flight-path assembly and exports can resolve launch parameters
	m.deps.LaunchCache.Add(launch)

	if !m.deps.SessionContext.Active() {
		return id, nil
	}

	if err := m.backend.AddLaunch(&launch); err != nil {
		return nil, fmt.Errorf("failed to record launch: %w", err)
	}

	m.writeLaunchMetric(&launch)

	return id, nil
}

// handleTick advances the world and records every produced sample, landing,
// and completed flight path.
func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	dt, err := m.deps.ParserService.ParseTick(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to tick: %w", err)
	}

	res, err := m.deps.Engine.Tick(dt)
	if err != nil {
		return nil, fmt.Errorf("failed to tick: %w", err)
	}

	if !m.deps.SessionContext.Active() {
		return nil, nil
	}

	now := time.Now()
	for _, ts := range res.Samples {
		state := core.SampleState{
			TrajectoryID: ts.TrajectoryID,
			Time:         now,
			FlightTime:   ts.Sample.FlightTime,
			X:            ts.Sample.X,
			Y:            ts.Sample.Y,
			VX:           ts.Sample.VX,
			VY:           ts.Sample.VY,
			Apex:         ts.Sample.Apex,
		}
		if err := m.backend.RecordSample(&state); err != nil {
			m.deps.LogManager.Logger().Error("Failed to record sample",
				"error", err, "trajectoryId", ts.TrajectoryID)
		}
	}

	for _, landing := range res.Landings {
		m.recordLanding(landing, now)
	}

	return nil, nil
}

func (m *Manager) recordLanding(landing engine.Landing, now time.Time) {
	event := core.LandingEvent{
		TrajectoryID: landing.TrajectoryID,
		Time:         now,
		FlightTime:   landing.FlightTime,
		X:            landing.X,
	}
	if err := m.backend.RecordLanding(&event); err != nil {
		m.deps.LogManager.Logger().Error("Failed to record landing",
			"error", err, "trajectoryId", landing.TrajectoryID)
	}

	if m.deps.Landings != nil {
		m.deps.Landings.Send(event)
	}

	snap, ok := m.deps.Engine.Snapshot(landing.TrajectoryID)
	if !ok {
		m.deps.LogManager.Logger().Warn("Landed trajectory missing from engine",
			"trajectoryId", landing.TrajectoryID)
		return
	}

	path := buildFlightPath(snap, now)
	if err := m.backend.RecordFlightPath(&path); err != nil {
		m.deps.LogManager.Logger().Error("Failed to record flight path",
			"error", err, "trajectoryId", landing.TrajectoryID)
	}
}

// buildFlightPath assembles the completed-flight summary from an engine
// snapshot taken at landing time.
func buildFlightPath(snap engine.FlightSnapshot, now time.Time) core.FlightPath {
	path := core.FlightPath{
		TrajectoryID:    snap.ID,
		Time:            now,
		Preset:          snap.Config.Preset,
		Mass:            snap.Config.Mass,
		Diameter:        snap.Config.Diameter,
		DragCoefficient: snap.Config.DragCoefficient,
		AirResistance:   snap.Config.AirResistance,
		ChangedInMidAir: snap.ChangedInMidAir,
		ReachedGround:   snap.ReachedGround,
		HasApex:         snap.HasApex,
	}
	if snap.HasApex {
		path.ApexTime = snap.Apex.FlightTime
		path.ApexX = snap.Apex.X
		path.ApexY = snap.Apex.Y
	}
	if n := len(snap.Samples); n > 0 {
		last := snap.Samples[n-1]
		path.ImpactX = last.X
		path.FlightDuration = last.FlightTime
	}
	path.Trail = make([]core.TrailPoint, 0, len(snap.Samples))
	for _, s := range snap.Samples {
		path.Trail = append(path.Trail, core.TrailPoint{
			FlightTime: s.FlightTime,
			X:          s.X,
			Y:          s.Y,
		})
	}
	return path
}

// handleAdjust applies new body parameters to every airborne flight and
// returns the number affected.
func (m *Manager) handleAdjust(e dispatcher.Event) (any, error) {
	adj, err := m.deps.ParserService.ParseAdjust(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust: %w", err)
	}

	n, err := m.deps.Engine.Adjust(adj)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust: %w", err)
	}

	return n, nil
}

func (m *Manager) handleEnv(e dispatcher.Event) (any, error) {
	gravity, altitude, err := m.deps.ParserService.ParseEnv(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to set environment: %w", err)
	}

	if err := m.deps.Engine.SetEnvironment(gravity, altitude); err != nil {
		return nil, fmt.Errorf("failed to set environment: %w", err)
	}

	return "ok", nil
}

// handleProbe runs a tracer query at the given point, records the reading,
// and returns it to the caller.
func (m *Manager) handleProbe(e dispatcher.Event) (any, error) {
	x, y, err := m.deps.ParserService.ParseProbe(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to probe: %w", err)
	}

	read, ok := m.deps.Engine.Probe(x, y)

	reading := core.ProbeReading{
		Time:    time.Now(),
		QueryX:  x,
		QueryY:  y,
		Matched: ok,
	}
	if ok {
		reading.TrajectoryID = read.TrajectoryID
		reading.SampleTime = read.Sample.FlightTime
		reading.SampleX = read.Sample.X
		reading.SampleY = read.Sample.Y
		reading.Apex = read.Sample.Apex
	}

	if m.deps.SessionContext.Active() {
		if err := m.backend.RecordProbe(&reading); err != nil {
			m.deps.LogManager.Logger().Error("Failed to record probe reading", "error", err)
		}
		m.writeProbeMetric(&reading)
	}

	return reading, nil
}

// handleNearest returns the closest recorded sample on one trajectory. Pure
// query: nothing is recorded.
func (m *Manager) handleNearest(e dispatcher.Event) (any, error) {
	id, x, y, err := m.deps.ParserService.ParseNearest(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest: %w", err)
	}

	sample, err := m.deps.Engine.Nearest(id, x, y)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest: %w", err)
	}

	return sample, nil
}

// handleErase clears all live trajectories from the engine. Recorded data is
// untouched and the ID counter keeps counting.
func (m *Manager) handleErase(e dispatcher.Event) (any, error) {
	n := m.deps.Engine.EraseAll()
	m.deps.LogManager.Logger().Info("Erased live trajectories", "count", n)
	return n, nil
}

// handleMetric forwards a metric array from the feed to InfluxDB.
func (m *Manager) handleMetric(e dispatcher.Event) (any, error) {
	if m.deps.Influx == nil {
		return nil, nil
	}

	bucket, point, err := influx.ProcessMetricData(e.Args, util.Unquote)
	if err != nil {
		return nil, fmt.Errorf("failed to process metric: %w", err)
	}

	if err := m.deps.Influx.WritePoint(context.Background(), bucket, point); err != nil {
		return nil, fmt.Errorf("failed to write metric: %w", err)
	}

	return nil, nil
}

func (m *Manager) writeLaunchMetric(l *core.Launch) {
	if m.deps.Influx == nil {
		return
	}

	point := influxwrite.NewPointWithMeasurement("launch").
		AddTag("sessionUid", m.deps.SessionContext.GetSession().UID).
		AddField("trajectoryId", int(l.TrajectoryID)).
		AddField("mass", l.Mass).
		AddField("diameter", l.Diameter).
		AddField("dragCoefficient", l.DragCoefficient).
		AddField("initialHeight", l.InitialHeight).
		AddField("initialAngle", l.InitialAngle).
		AddField("initialSpeed", l.InitialSpeed).
		SetTime(l.Time)
	if l.Preset != "" {
		point.AddTag("preset", l.Preset)
	}

	if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketFlightData, point); err != nil {
		m.deps.LogManager.Logger().Warn("Failed to write launch metric", "error", err)
	}
}

func (m *Manager) writeProbeMetric(r *core.ProbeReading) {
	if m.deps.Influx == nil {
		return
	}

	point := influxwrite.NewPointWithMeasurement("probe").
		AddTag("sessionUid", m.deps.SessionContext.GetSession().UID).
		AddField("queryX", r.QueryX).
		AddField("queryY", r.QueryY).
		AddField("matched", r.Matched).
		SetTime(r.Time)
	if r.Matched {
		point.AddField("trajectoryId", int(r.TrajectoryID))
		point.AddField("sampleX", r.SampleX)
		point.AddField("sampleY", r.SampleY)
		point.AddField("apex", r.Apex)
	}

	if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketProbeData, point); err != nil {
		m.deps.LogManager.Logger().Warn("Failed to write probe metric", "error", err)
	}
}
