package v1

import (
	"math"
	"time"

	"github.com/rangelab/trajector/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session *core.Session
	Site    *core.Site

	Trajectories map[uint16]*TrajectoryRecord
	Probes       []core.ProbeReading
	Performances []core.Performance
}

// TrajectoryRecord groups a launch with all its time-series data
type TrajectoryRecord struct {
	Launch   core.Launch
	Samples  []core.SampleState
	Landings []core.LandingEvent
	Path     *core.FlightPath
}

// Build creates an Export from the recorded session data
func Build(data *SessionData) Export {
	export := Export{
		ServiceVersion: data.Session.ServiceVersion,
		EngineVersion:  data.Session.EngineVersion,
		SessionName:    data.Session.Name,
		SiteName:       data.Site.Name,
		StartTime:      data.Session.StartTime.UTC().Format(time.RFC3339),
		StepMs:         data.Session.StepMs,
		Gravity:        data.Session.Gravity,
		Altitude:       data.Session.Altitude,
		Tags:           data.Session.Tag,
		Trajectories:   make([]Trajectory, 0),
		Events:         make([][]any, 0),
		Performance:    make([][]any, 0),
	}

	var maxFlightMs uint = 0

	// Find max trajectory ID to size the trajectories array correctly
	// The replay frontend uses trajectories[id] to look up flights, so array index must equal trajectory ID
	var maxTrajectoryID uint16 = 0
	hasTrajectories := len(data.Trajectories) > 0
	for id := range data.Trajectories {
		if id > maxTrajectoryID {
			maxTrajectoryID = id
		}
	}

	// Create trajectories array with placeholder entries
	// Index N will contain the flight with TrajectoryID=N
	if hasTrajectories {
		export.Trajectories = make([]Trajectory, maxTrajectoryID+1)
	}

	for id, record := range data.Trajectories {
		trajectory := Trajectory{
			ID:              id,
			Preset:          record.Launch.Preset,
			Mass:            record.Launch.Mass,
			Diameter:        record.Launch.Diameter,
			DragCoefficient: record.Launch.DragCoefficient,
			AirResistance:   boolToInt(record.Launch.AirResistance),
			LaunchHeight:    record.Launch.InitialHeight,
			LaunchAngle:     record.Launch.InitialAngle,
			LaunchSpeed:     record.Launch.InitialSpeed,
			StartOffsetMs:   elapsedMs(data.Session.StartTime, record.Launch.Time),
			Samples:         make([][]any, 0, len(record.Samples)),
		}

		for _, sample := range record.Samples {
			// Format: [flightMs, [x, y], [vx, vy], apex]
			row := []any{
				flightMs(sample.FlightTime),
				[]float64{sample.X, sample.Y},
				[]float64{sample.VX, sample.VY},
				boolToInt(sample.Apex),
			}
			trajectory.Samples = append(trajectory.Samples, row)
			if ms := flightMs(sample.FlightTime); ms > maxFlightMs {
				maxFlightMs = ms
			}
		}

		if record.Path != nil {
			trajectory.Summary = &Summary{
				ReachedGround:   boolToInt(record.Path.ReachedGround),
				ChangedInMidAir: boolToInt(record.Path.ChangedInMidAir),
				HasApex:         boolToInt(record.Path.HasApex),
				ApexMs:          flightMs(record.Path.ApexTime),
				ApexX:           record.Path.ApexX,
				ApexY:           record.Path.ApexY,
				ImpactX:         record.Path.ImpactX,
				DurationMs:      flightMs(record.Path.FlightDuration),
			}
			if ms := flightMs(record.Path.FlightDuration); ms > maxFlightMs {
				maxFlightMs = ms
			}
		}

		export.Trajectories[id] = trajectory

		// Convert landing events
		// Format: [flightMs, "landed", trajectoryID, impactX]
		for _, landing := range record.Landings {
			export.Events = append(export.Events, []any{
				flightMs(landing.FlightTime),
				"landed",
				id,
				landing.X,
			})
			if ms := flightMs(landing.FlightTime); ms > maxFlightMs {
				maxFlightMs = ms
			}
		}
	}

	export.EndFlightMs = maxFlightMs

	// Convert probe readings
	// Format: [offsetMs, "probe", [queryX, queryY], matched, trajectoryID, sampleMs, [sampleX, sampleY], apex]
	for _, probe := range data.Probes {
		export.Events = append(export.Events, []any{
			elapsedMs(data.Session.StartTime, probe.Time),
			"probe",
			[]float64{probe.QueryX, probe.QueryY},
			boolToInt(probe.Matched),
			probe.TrajectoryID,
			flightMs(probe.SampleTime),
			[]float64{probe.SampleX, probe.SampleY},
			boolToInt(probe.Apex),
		})
	}

	// Convert performance snapshots
	// Format: [offsetMs, trajectories, airborne, landed, tickBuffer, queuedWrites, lastWriteMs]
	for _, perf := range data.Performances {
		queued := perf.WriteQueues.Launches + perf.WriteQueues.Samples +
			perf.WriteQueues.Landings + perf.WriteQueues.FlightPaths + perf.WriteQueues.Probes
		export.Performance = append(export.Performance, []any{
			elapsedMs(data.Session.StartTime, perf.Time),
			perf.Trajectories,
			perf.Airborne,
			perf.Landed,
			perf.Buffers.Ticks,
			queued,
			perf.LastWriteDurationMs,
		})
	}

	return export
}

// flightMs converts a flight time in seconds to whole milliseconds.
func flightMs(seconds float64) uint {
	return uint(math.Round(seconds * 1000))
}

// elapsedMs returns the whole milliseconds between start and t, clamped at
// zero for timestamps that predate the session.
func elapsedMs(start, t time.Time) uint {
	d := t.Sub(start)
	if d < 0 {
		return 0
	}
	return uint(d.Milliseconds())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
