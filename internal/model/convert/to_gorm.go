// Package convert provides functions to convert between GORM models and core records
package convert

import (
	"database/sql"
	"encoding/json"
	"math"

	"github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/rangelab/trajector/internal/geo"
	"github.com/rangelab/trajector/internal/model"
	"github.com/rangelab/trajector/pkg/core"
)

// flightMs converts flight seconds to whole milliseconds on the step grid.
func flightMs(t float64) uint {
	return uint(math.Round(t * 1000))
}

// launchParams snapshots the launch-time configuration as JSON. The Launch
// parameter columns are overwritten with the final values when the flight
// completes, so this is where the original configuration survives.
func launchParams(l core.Launch) datatypes.JSON {
	data, _ := json.Marshal(map[string]any{
		"preset":          l.Preset,
		"mass":            l.Mass,
		"diameter":        l.Diameter,
		"dragCoefficient": l.DragCoefficient,
		"airResistance":   l.AirResistance,
		"initialHeight":   l.InitialHeight,
		"initialAngle":    l.InitialAngle,
		"initialSpeed":    l.InitialSpeed,
	})
	return datatypes.JSON(data)
}

// CoreToSite converts a core.Site to a GORM model.Site, projecting the
// site coordinates to EPSG:3857 with the altitude as Z.
func CoreToSite(s core.Site) model.Site {
	return model.Site{
		Name:      s.Name,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Location:  geo.SiteLocation3857(s.Longitude, s.Latitude, s.Altitude),
		Altitude:  s.Altitude,
	}
}

// CoreToSession converts a core.Session to a GORM model.Session.
// SiteID is assigned by the storage layer once the site row exists.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		UID:            s.UID,
		SessionName:    s.Name,
		Tag:            s.Tag,
		StartTime:      s.StartTime,
		Gravity:        s.Gravity,
		Altitude:       s.Altitude,
		StepMs:         s.StepMs,
		EngineVersion:  s.EngineVersion,
		ServiceVersion: s.ServiceVersion,
	}
}

// CoreToLaunch converts a core.Launch to a GORM model.Launch.
// core.Launch.TrajectoryID maps to the composite key half; SessionID is
// assigned by the storage layer.
func CoreToLaunch(l core.Launch) model.Launch {
	return model.Launch{
		TrajectoryID:    l.TrajectoryID,
		Time:            l.Time,
		Preset:          l.Preset,
		Mass:            l.Mass,
		Diameter:        l.Diameter,
		DragCoefficient: l.DragCoefficient,
		AirResistance:   l.AirResistance,
		InitialHeight:   l.InitialHeight,
		InitialAngle:    l.InitialAngle,
		InitialSpeed:    l.InitialSpeed,
		Params:          launchParams(l),
	}
}

// CoreToSampleState converts a core.SampleState to a GORM model.SampleState.
// The sample is georeferenced against the site origin.
func CoreToSampleState(s core.SampleState, origin geom.Point) model.SampleState {
	return model.SampleState{
		TrajectoryID: s.TrajectoryID,
		Time:         s.Time,
		FlightTimeMs: flightMs(s.FlightTime),
		FlightTime:   s.FlightTime,
		Position:     geo.RangePoint(origin, s.X, s.Y),
		DownrangeX:   s.X,
		Height:       s.Y,
		VelocityX:    s.VX,
		VelocityY:    s.VY,
		IsApex:       s.Apex,
	}
}

// CoreToLandingEvent converts a core.LandingEvent to a GORM model.LandingEvent.
// The impact point sits on the launch plane, so height is zero.
func CoreToLandingEvent(e core.LandingEvent, origin geom.Point) model.LandingEvent {
	return model.LandingEvent{
		TrajectoryID: e.TrajectoryID,
		Time:         e.Time,
		FlightTimeMs: flightMs(e.FlightTime),
		FlightTime:   e.FlightTime,
		ImpactX:      e.X,
		Position:     geo.RangePoint(origin, e.X, 0),
		Distance:     float32(math.Abs(e.X)),
	}
}

// CoreToProbeReading converts a core.ProbeReading to a GORM model.ProbeReading.
// An unmatched probe stores a null trajectory ID.
func CoreToProbeReading(r core.ProbeReading) model.ProbeReading {
	result := model.ProbeReading{
		Time:       r.Time,
		QueryX:     r.QueryX,
		QueryY:     r.QueryY,
		Matched:    r.Matched,
		SampleTime: r.SampleTime,
		SampleX:    r.SampleX,
		SampleY:    r.SampleY,
		IsApex:     r.Apex,
	}

	if r.Matched {
		result.TrajectoryID = sql.NullInt32{Int32: int32(r.TrajectoryID), Valid: true}
	}

	return result
}

// CoreToPerformance converts a core.Performance to a GORM model.Performance.
func CoreToPerformance(p core.Performance) model.Performance {
	return model.Performance{
		Time:         p.Time,
		Trajectories: uint16(p.Trajectories),
		Airborne:     uint16(p.Airborne),
		Landed:       uint16(p.Landed),
		Buffers: model.BufferDepths{
			Ticks:   uint16(p.Buffers.Ticks),
			Metrics: uint16(p.Buffers.Metrics),
		},
		WriteQueues: model.QueueDepths{
			Launches:    uint16(p.WriteQueues.Launches),
			Samples:     uint16(p.WriteQueues.Samples),
			Landings:    uint16(p.WriteQueues.Landings),
			FlightPaths: uint16(p.WriteQueues.FlightPaths),
			Probes:      uint16(p.WriteQueues.Probes),
		},
		LastWriteMs:         p.LastWriteDurationMs,
		LandingChannelDepth: uint16(p.LandingChannelDepth),
	}
}

// ApplyFlightPath fills the completed-flight summary on a Launch row.
// Parameter columns take the final flight configuration (Adjust may have
// changed them mid-air); the launch-time values stay in Params. The trail is
// georeferenced into a LineStringZM with flight milliseconds as the measure.
func ApplyFlightPath(l *model.Launch, p core.FlightPath, origin geom.Point) {
	l.Preset = p.Preset
	l.Mass = p.Mass
	l.Diameter = p.Diameter
	l.DragCoefficient = p.DragCoefficient
	l.AirResistance = p.AirResistance

	l.ChangedInMidAir = p.ChangedInMidAir
	l.ReachedGround = p.ReachedGround
	l.HasApex = p.HasApex
	if p.HasApex {
		l.ApexTime = sql.NullFloat64{Float64: p.ApexTime, Valid: true}
		l.ApexX = sql.NullFloat64{Float64: p.ApexX, Valid: true}
		l.ApexY = sql.NullFloat64{Float64: p.ApexY, Valid: true}
	}
	if p.ReachedGround {
		l.ImpactX = sql.NullFloat64{Float64: p.ImpactX, Valid: true}
	}
	l.FlightDuration = p.FlightDuration

	if len(p.Trail) >= 2 {
		l.Trail = geo.TrailLineString(origin, p.Trail).AsGeometry()
	}
}
