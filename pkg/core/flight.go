// pkg/core/flight.go
package core

import "time"

// Launch is the record of one projectile leaving the muzzle.
type Launch struct {
	TrajectoryID    uint16
	Time            time.Time
	Preset          string
	Mass            float64
	Diameter        float64
	DragCoefficient float64
	AirResistance   bool
	InitialHeight   float64
	InitialAngle    float64
	InitialSpeed    float64
}

// SampleState is one recorded trajectory point.
type SampleState struct {
	TrajectoryID uint16
	Time         time.Time // wall clock at recording
	FlightTime   float64   // seconds since launch
	X, Y         float64
	VX, VY       float64
	Apex         bool
}

// LandingEvent is the single ground contact of a flight.
type LandingEvent struct {
	TrajectoryID uint16
	Time         time.Time
	FlightTime   float64
	X            float64
}

// TrailPoint is one vertex of a completed flight path.
type TrailPoint struct {
	FlightTime float64
	X, Y       float64
}

// FlightPath is the completed-flight summary written once a projectile has
// landed: final parameters, apex if any, and the full trail.
type FlightPath struct {
	TrajectoryID    uint16
	Time            time.Time
	Preset          string
	Mass            float64
	Diameter        float64
	DragCoefficient float64
	AirResistance   bool
	ChangedInMidAir bool
	ReachedGround   bool
	HasApex         bool
	ApexTime        float64
	ApexX, ApexY    float64
	ImpactX         float64
	FlightDuration  float64
	Trail           []TrailPoint
}

// ProbeReading records a tracer query and what it locked onto.
type ProbeReading struct {
	Time           time.Time
	QueryX, QueryY float64
	Matched        bool
	TrajectoryID   uint16
	SampleTime     float64
	SampleX        float64
	SampleY        float64
	Apex           bool
}
