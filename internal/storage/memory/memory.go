package memory

import (
	"errors"
	"sync"

	"github.com/rangelab/trajector/internal/config"
	"github.com/rangelab/trajector/pkg/core"
)

// TrajectoryRecord groups a launch with all its time-series data
type TrajectoryRecord struct {
	Launch   core.Launch
	Samples  []core.SampleState
	Landings []core.LandingEvent
	Path     *core.FlightPath
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	site    *core.Site

	trajectories map[uint16]*TrajectoryRecord // keyed by TrajectoryID

	probeReadings []core.ProbeReading
	performances  []core.Performance

	lastExportPath string
	mu             sync.RWMutex
}

// New returns a backend that keeps everything in memory until export.
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:          cfg,
		trajectories: make(map[uint16]*TrajectoryRecord),
	}
}

// Init is a no-op; the backend is usable as built.
func (b *Backend) Init() error {
	return nil
}

// Close is a no-op; EndSession already wrote the export.
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(session *core.Session, site *core.Site) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// IDs set by the caller are kept; fresh records get ID 1 for parity
	// with the database backends
	if session.ID == 0 {
		session.ID = 1
	}
	if site.ID == 0 {
		site.ID = 1
	}

	b.session = session
	b.site = site

	// Reset all collections
	b.trajectories = make(map[uint16]*TrajectoryRecord)
	b.probeReadings = nil
	b.performances = nil
	b.lastExportPath = ""

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return errors.New("no session to end")
	}

	return b.exportJSON()
}

// AddLaunch registers a new projectile launch
func (b *Backend) AddLaunch(l *core.Launch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record := b.record(l.TrajectoryID)
	record.Launch = *l
	return nil
}

// GetLaunchByTrajectoryID looks up a launch by its trajectory ID
func (b *Backend) GetLaunchByTrajectoryID(trajectoryID uint16) (*core.Launch, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.trajectories[trajectoryID]; ok {
		return &record.Launch, true
	}
	return nil, false
}

// RecordSample records a trajectory sample point
func (b *Backend) RecordSample(s *core.SampleState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record := b.record(s.TrajectoryID)
	record.Samples = append(record.Samples, *s)
	return nil
}

// RecordLanding records a ground contact
func (b *Backend) RecordLanding(e *core.LandingEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record := b.record(e.TrajectoryID)
	record.Landings = append(record.Landings, *e)
	return nil
}

// RecordFlightPath records the completed-flight summary
func (b *Backend) RecordFlightPath(p *core.FlightPath) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record := b.record(p.TrajectoryID)
	path := *p
	record.Path = &path
	return nil
}

// RecordProbe records a tracer probe reading
func (b *Backend) RecordProbe(r *core.ProbeReading) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeReadings = append(b.probeReadings, *r)
	return nil
}

// RecordPerformance records a pipeline health snapshot
func (b *Backend) RecordPerformance(p *core.Performance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.performances = append(b.performances, *p)
	return nil
}

// record returns the trajectory record for id, creating it if needed.
// Callers must hold b.mu.
func (b *Backend) record(id uint16) *TrajectoryRecord {
	rec, ok := b.trajectories[id]
	if !ok {
		rec = &TrajectoryRecord{
			Samples: make([]core.SampleState, 0),
		}
		b.trajectories[id] = rec
	}
	return rec
}
