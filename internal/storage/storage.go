// Package storage defines the contract between the recording pipeline and
// the places a session can land: Postgres, local SQLite, plain files, or a
// live WebSocket feed.
package storage

import "github.com/rangelab/trajector/pkg/core"

// Backend receives everything the simulation records. Implementations
// choose their own durability and batching; callers only see these
// methods.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *core.Session, site *core.Site) error
	EndSession() error

	// Launch registration
	AddLaunch(l *core.Launch) error

	// State recording
	RecordSample(s *core.SampleState) error
	RecordLanding(e *core.LandingEvent) error
	RecordFlightPath(p *core.FlightPath) error
	RecordProbe(r *core.ProbeReading) error
	RecordPerformance(p *core.Performance) error
}

// Uploadable marks backends whose Close leaves behind a file the range
// viewer can ingest.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() UploadMetadata
}

// UploadMetadata describes an exported recording for the viewer upload API.
type UploadMetadata struct {
	SiteName        string
	SessionName     string
	SessionDuration float64 // seconds of recorded flight time
	Tag             string
}
