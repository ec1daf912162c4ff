// Package v1 contains the v1 export format for recorded flight sessions.
// This format is consumed by the trajector-web replay frontend.
package v1

// Export is the root JSON structure for v1 format
type Export struct {
	ServiceVersion string       `json:"serviceVersion"`
	EngineVersion  string       `json:"engineVersion"`
	SessionName    string       `json:"sessionName"`
	SiteName       string       `json:"siteName"`
	StartTime      string       `json:"startTime"`
	StepMs         int          `json:"stepMs"`
	Gravity        float64      `json:"gravity"`
	Altitude       float64      `json:"altitude"`
	Tags           string       `json:"tags"`
	EndFlightMs    uint         `json:"endFlightMs"`
	Trajectories   []Trajectory `json:"trajectories"`
	Events         [][]any      `json:"events"`
	Performance    [][]any      `json:"performance"`
}

// Trajectory represents one recorded projectile flight
type Trajectory struct {
	ID              uint16   `json:"id"`
	Preset          string   `json:"preset,omitempty"`
	Mass            float64  `json:"mass"`
	Diameter        float64  `json:"diameter"`
	DragCoefficient float64  `json:"dragCoefficient"`
	AirResistance   int      `json:"airResistance"`
	LaunchHeight    float64  `json:"launchHeight"`
	LaunchAngle     float64  `json:"launchAngle"`
	LaunchSpeed     float64  `json:"launchSpeed"`
	StartOffsetMs   uint     `json:"startOffsetMs"`
	Samples         [][]any  `json:"samples"`
	Summary         *Summary `json:"summary,omitempty"`
}

// Summary holds the completed-flight figures once a projectile has landed
type Summary struct {
	ReachedGround   int     `json:"reachedGround"`
	ChangedInMidAir int     `json:"changedInMidAir"`
	HasApex         int     `json:"hasApex"`
	ApexMs          uint    `json:"apexMs"`
	ApexX           float64 `json:"apexX"`
	ApexY           float64 `json:"apexY"`
	ImpactX         float64 `json:"impactX"`
	DurationMs      uint    `json:"durationMs"`
}
