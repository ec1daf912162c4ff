package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelab/trajector/pkg/core"
)

func makeOrigin(x, y, z float64) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Z:    z,
		Type: geom.CoordinatesType(geom.DimXYZ),
	})
}

func TestFlightMs(t *testing.T) {
	assert.Equal(t, uint(0), flightMs(0))
	assert.Equal(t, uint(50), flightMs(0.05))
	assert.Equal(t, uint(1025), flightMs(1.025))
	// accumulated float steps still land on the grid
	assert.Equal(t, uint(300), flightMs(0.30000000000000004))
}

func TestCoreToSite(t *testing.T) {
	site := CoreToSite(core.Site{
		Name:      "Bench 3",
		Longitude: 0,
		Latitude:  0,
		Altitude:  820.0,
	})

	assert.Equal(t, "Bench 3", site.Name)
	assert.Equal(t, 820.0, site.Altitude)

	coord, ok := site.Location.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 0.0, coord.X)
	assert.Equal(t, 0.0, coord.Y)
	assert.Equal(t, 820.0, coord.Z)
}

func TestCoreToLaunch(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)

	launch := CoreToLaunch(core.Launch{
		TrajectoryID:    3,
		Time:            now,
		Preset:          "cannonball",
		Mass:            17.6,
		Diameter:        0.18,
		DragCoefficient: 0.47,
		AirResistance:   true,
		InitialHeight:   1.5,
		InitialAngle:    45.0,
		InitialSpeed:    120.0,
	})

	assert.Equal(t, uint16(3), launch.TrajectoryID)
	assert.Equal(t, now, launch.Time)
	assert.Equal(t, "cannonball", launch.Preset)
	assert.Equal(t, 17.6, launch.Mass)
	assert.True(t, launch.AirResistance)
	assert.False(t, launch.ReachedGround)

	var params map[string]any
	require.NoError(t, json.Unmarshal(launch.Params, &params))
	assert.Equal(t, "cannonball", params["preset"])
	assert.Equal(t, 17.6, params["mass"])
	assert.Equal(t, 45.0, params["initialAngle"])
	assert.Equal(t, true, params["airResistance"])
}

func TestCoreToSampleState(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	origin := makeOrigin(1000.0, 2000.0, 500.0)

	state := CoreToSampleState(core.SampleState{
		TrajectoryID: 7,
		Time:         now,
		FlightTime:   0.075,
		X:            30.0,
		Y:            12.0,
		VX:           40.0,
		VY:           -2.5,
		Apex:         true,
	}, origin)

	assert.Equal(t, uint16(7), state.TrajectoryID)
	assert.Equal(t, uint(75), state.FlightTimeMs)
	assert.Equal(t, 0.075, state.FlightTime)
	assert.Equal(t, 30.0, state.DownrangeX)
	assert.Equal(t, 12.0, state.Height)
	assert.Equal(t, 40.0, state.VelocityX)
	assert.Equal(t, -2.5, state.VelocityY)
	assert.True(t, state.IsApex)

	coord, ok := state.Position.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 1030.0, coord.X)
	assert.Equal(t, 2000.0, coord.Y)
	assert.Equal(t, 512.0, coord.Z)
}

func TestCoreToLandingEvent(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	origin := makeOrigin(1000.0, 2000.0, 500.0)

	event := CoreToLandingEvent(core.LandingEvent{
		TrajectoryID: 2,
		Time:         now,
		FlightTime:   3.625,
		X:            86.4,
	}, origin)

	assert.Equal(t, uint16(2), event.TrajectoryID)
	assert.Equal(t, uint(3625), event.FlightTimeMs)
	assert.Equal(t, 86.4, event.ImpactX)
	assert.Equal(t, float32(86.4), event.Distance)

	// the impact point sits on the launch plane
	coord, ok := event.Position.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 1086.4, coord.X, 1e-9)
	assert.Equal(t, 500.0, coord.Z)
}

func TestCoreToProbeReading_Matched(t *testing.T) {
	reading := CoreToProbeReading(core.ProbeReading{
		QueryX:       10.0,
		QueryY:       5.0,
		Matched:      true,
		TrajectoryID: 4,
		SampleTime:   1.25,
		SampleX:      10.1,
		SampleY:      5.05,
		Apex:         true,
	})

	assert.True(t, reading.Matched)
	require.True(t, reading.TrajectoryID.Valid)
	assert.Equal(t, int32(4), reading.TrajectoryID.Int32)
	assert.Equal(t, 1.25, reading.SampleTime)
	assert.True(t, reading.IsApex)
}

func TestCoreToProbeReading_Unmatched(t *testing.T) {
	reading := CoreToProbeReading(core.ProbeReading{
		QueryX:  10.0,
		QueryY:  5.0,
		Matched: false,
	})

	assert.False(t, reading.Matched)
	assert.False(t, reading.TrajectoryID.Valid)
}

func TestCoreToPerformance(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)

	perf := CoreToPerformance(core.Performance{
		Time:         now,
		Trajectories: 12,
		Airborne:     3,
		Landed:       9,
		Buffers: core.BufferLengths{
			Ticks:   40,
			Metrics: 2,
		},
		WriteQueues: core.WriteQueueLengths{
			Launches: 1,
			Samples:  250,
			Landings: 1,
			Probes:   4,
		},
		LastWriteDurationMs: 12.5,
		LandingChannelDepth: 2,
	})

	assert.Equal(t, now, perf.Time)
	assert.Equal(t, uint16(12), perf.Trajectories)
	assert.Equal(t, uint16(3), perf.Airborne)
	assert.Equal(t, uint16(40), perf.Buffers.Ticks)
	assert.Equal(t, uint16(250), perf.WriteQueues.Samples)
	assert.Equal(t, float32(12.5), perf.LastWriteMs)
	assert.Equal(t, uint16(2), perf.LandingChannelDepth)
}

func TestApplyFlightPath(t *testing.T) {
	origin := makeOrigin(1000.0, 2000.0, 500.0)
	launch := CoreToLaunch(core.Launch{
		TrajectoryID: 1,
		Preset:       "golfball",
		Mass:         0.046,
	})

	ApplyFlightPath(&launch, core.FlightPath{
		TrajectoryID:    1,
		Preset:          "",
		Mass:            0.05,
		Diameter:        0.043,
		DragCoefficient: 0.25,
		AirResistance:   true,
		ChangedInMidAir: true,
		ReachedGround:   true,
		HasApex:         true,
		ApexTime:        1.2,
		ApexX:           14.0,
		ApexY:           8.5,
		ImpactX:         29.75,
		FlightDuration:  2.425,
		Trail: []core.TrailPoint{
			{FlightTime: 0, X: 0, Y: 0},
			{FlightTime: 1.2, X: 14.0, Y: 8.5},
			{FlightTime: 2.425, X: 29.75, Y: 0},
		},
	}, origin)

	// final configuration wins, snapshot keeps the original
	assert.Equal(t, "", launch.Preset)
	assert.Equal(t, 0.05, launch.Mass)
	var params map[string]any
	require.NoError(t, json.Unmarshal(launch.Params, &params))
	assert.Equal(t, "golfball", params["preset"])
	assert.Equal(t, 0.046, params["mass"])

	assert.True(t, launch.ChangedInMidAir)
	assert.True(t, launch.ReachedGround)
	assert.True(t, launch.HasApex)
	require.True(t, launch.ApexTime.Valid)
	assert.Equal(t, 1.2, launch.ApexTime.Float64)
	assert.Equal(t, 8.5, launch.ApexY.Float64)
	require.True(t, launch.ImpactX.Valid)
	assert.Equal(t, 29.75, launch.ImpactX.Float64)
	assert.Equal(t, 2.425, launch.FlightDuration)

	ls, ok := launch.Trail.AsLineString()
	require.True(t, ok)
	seq := ls.Coordinates()
	require.Equal(t, 3, seq.Length())
	assert.Equal(t, geom.DimXYZM, seq.CoordinatesType())
	assert.Equal(t, 1014.0, seq.Get(1).X)
	assert.Equal(t, 508.5, seq.Get(1).Z)
	assert.Equal(t, 1200.0, seq.Get(1).M)
	assert.Equal(t, 2425.0, seq.Get(2).M)
}

func TestApplyFlightPath_AirborneErase(t *testing.T) {
	// a flight wiped before landing has no apex, impact, or trail geometry
	origin := makeOrigin(0, 0, 0)
	launch := CoreToLaunch(core.Launch{TrajectoryID: 2})

	ApplyFlightPath(&launch, core.FlightPath{
		TrajectoryID:   2,
		ReachedGround:  false,
		HasApex:        false,
		FlightDuration: 0.5,
	}, origin)

	assert.False(t, launch.ReachedGround)
	assert.False(t, launch.ApexTime.Valid)
	assert.False(t, launch.ApexX.Valid)
	assert.False(t, launch.ImpactX.Valid)
	_, ok := launch.Trail.AsLineString()
	assert.False(t, ok)
}
