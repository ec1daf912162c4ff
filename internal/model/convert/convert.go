// Package convert provides functions to convert GORM models to core records
package convert

import (
	"github.com/peterstace/simplefeatures/geom"

	"github.com/rangelab/trajector/internal/geo"
	"github.com/rangelab/trajector/internal/model"
	"github.com/rangelab/trajector/pkg/core"
)

// SiteToCore converts a GORM Site to a core.Site. The persisted location is
// EPSG:3857, so longitude and latitude are recovered from the projection.
func SiteToCore(s model.Site) core.Site {
	result := core.Site{
		ID:       s.ID,
		Name:     s.Name,
		Altitude: s.Altitude,
	}
	if coord, ok := s.Location.Coordinates(); ok {
		result.Longitude, result.Latitude = geo.Coords4326From3857(coord.X, coord.Y)
	}
	return result
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:             s.ID,
		UID:            s.UID,
		Name:           s.SessionName,
		Tag:            s.Tag,
		StartTime:      s.StartTime,
		Gravity:        s.Gravity,
		Altitude:       s.Altitude,
		StepMs:         s.StepMs,
		EngineVersion:  s.EngineVersion,
		ServiceVersion: s.ServiceVersion,
	}
}

// LaunchToCore converts a GORM Launch back to the launch record. Parameter
// columns hold the final flight configuration, which is what downstream
// consumers want; the launch-time snapshot stays in the Params JSON.
func LaunchToCore(l model.Launch) core.Launch {
	return core.Launch{
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
	}
}

// LaunchToFlightPath rebuilds the completed-flight summary from a Launch row.
// The trail geometry is projected back into the flight plane around the site
// origin: downrange meters east of it, height above its altitude.
func LaunchToFlightPath(l model.Launch, origin geom.Point) core.FlightPath {
	result := core.FlightPath{
		TrajectoryID:    l.TrajectoryID,
		Time:            l.Time,
		Preset:          l.Preset,
		Mass:            l.Mass,
		Diameter:        l.Diameter,
		DragCoefficient: l.DragCoefficient,
		AirResistance:   l.AirResistance,
		ChangedInMidAir: l.ChangedInMidAir,
		ReachedGround:   l.ReachedGround,
		HasApex:         l.HasApex,
		FlightDuration:  l.FlightDuration,
	}
	if l.ApexTime.Valid {
		result.ApexTime = l.ApexTime.Float64
	}
	if l.ApexX.Valid {
		result.ApexX = l.ApexX.Float64
	}
	if l.ApexY.Valid {
		result.ApexY = l.ApexY.Float64
	}
	if l.ImpactX.Valid {
		result.ImpactX = l.ImpactX.Float64
	}

	originCoord, ok := origin.Coordinates()
	if !ok {
		originCoord = geom.Coordinates{}
	}
	if ls, lsOK := l.Trail.AsLineString(); lsOK {
		seq := ls.Coordinates()
		result.Trail = make([]core.TrailPoint, 0, seq.Length())
		for i := 0; i < seq.Length(); i++ {
			coord := seq.Get(i)
			result.Trail = append(result.Trail, core.TrailPoint{
				FlightTime: coord.M / 1000,
				X:          coord.X - originCoord.X,
				Y:          coord.Z - originCoord.Z,
			})
		}
	}

	return result
}

// SampleStateToCore converts a GORM SampleState to a core.SampleState.
// The flight-plane columns are authoritative; the georeferenced point is
// derived data and not inverted.
func SampleStateToCore(s model.SampleState) core.SampleState {
	return core.SampleState{
		TrajectoryID: s.TrajectoryID,
		Time:         s.Time,
		FlightTime:   s.FlightTime,
		X:            s.DownrangeX,
		Y:            s.Height,
		VX:           s.VelocityX,
		VY:           s.VelocityY,
		Apex:         s.IsApex,
	}
}

// LandingEventToCore converts a GORM LandingEvent to a core.LandingEvent.
func LandingEventToCore(e model.LandingEvent) core.LandingEvent {
	return core.LandingEvent{
		TrajectoryID: e.TrajectoryID,
		Time:         e.Time,
		FlightTime:   e.FlightTime,
		X:            e.ImpactX,
	}
}

// ProbeReadingToCore converts a GORM ProbeReading to a core.ProbeReading.
func ProbeReadingToCore(r model.ProbeReading) core.ProbeReading {
	result := core.ProbeReading{
		Time:       r.Time,
		QueryX:     r.QueryX,
		QueryY:     r.QueryY,
		Matched:    r.Matched,
		SampleTime: r.SampleTime,
		SampleX:    r.SampleX,
		SampleY:    r.SampleY,
		Apex:       r.IsApex,
	}
	if r.TrajectoryID.Valid {
		result.TrajectoryID = uint16(r.TrajectoryID.Int32)
	}
	return result
}

func PerformanceToCore(p model.Performance) core.Performance {
	return core.Performance{
		Time:         p.Time,
		Trajectories: int(p.Trajectories),
		Airborne:     int(p.Airborne),
		Landed:       int(p.Landed),
		Buffers: core.BufferLengths{
			Ticks:   int(p.Buffers.Ticks),
			Metrics: int(p.Buffers.Metrics),
		},
		WriteQueues: core.WriteQueueLengths{
			Launches:    int(p.WriteQueues.Launches),
			Samples:     int(p.WriteQueues.Samples),
			Landings:    int(p.WriteQueues.Landings),
			FlightPaths: int(p.WriteQueues.FlightPaths),
			Probes:      int(p.WriteQueues.Probes),
		},
		LastWriteDurationMs: p.LastWriteMs,
		LandingChannelDepth: int(p.LandingChannelDepth),
	}
}
