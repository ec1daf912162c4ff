// Package gormstorage implements the shared GORM write path used by the
// postgres and sqlite backends: per-type queues drained by a background
// writer goroutine.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"gorm.io/gorm"

	"github.com/rangelab/trajector/internal/cache"
	"github.com/rangelab/trajector/internal/geo"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/model"
	"github.com/rangelab/trajector/internal/model/convert"
	"github.com/rangelab/trajector/internal/queue"
	"github.com/rangelab/trajector/internal/session"
	"github.com/rangelab/trajector/pkg/core"
)

// writeInterval is the pause between queue drain cycles.
const writeInterval = 2 * time.Second

// Dependencies is everything the write path borrows from the host backend.
type Dependencies struct {
	DB             *gorm.DB
	LaunchCache    *cache.LaunchCache
	LogManager     *logging.Manager
	SessionContext *session.Context

	// IsDatabaseValid reports whether the DB connection is usable.
	IsDatabaseValid func() bool
	// ShouldSaveLocal reports whether writes go to the SQLite fallback.
	ShouldSaveLocal func() bool
	// DBInsertsPaused reports whether queue draining is suspended.
	DBInsertsPaused func() bool
}

// queues is one insert queue per table.
type queues struct {
	Launches      *queue.Queue[model.Launch]
	SampleStates  *queue.Queue[model.SampleState]
	LandingEvents *queue.Queue[model.LandingEvent]
	FlightPaths   *queue.Queue[model.Launch] // completed-flight row updates
	ProbeReadings *queue.Queue[model.ProbeReading]
	Performances  *queue.Queue[model.Performance]
}

func newQueues() *queues {
	return &queues{
		Launches:      queue.New[model.Launch](),
		SampleStates:  queue.New[model.SampleState](),
		LandingEvents: queue.New[model.LandingEvent](),
		FlightPaths:   queue.New[model.Launch](),
		ProbeReadings: queue.New[model.ProbeReading](),
		Performances:  queue.New[model.Performance](),
	}
}

// Backend implements storage.Backend on a GORM DB with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	origin    geom.Point // site location, set by StartSession before samples flow
	stop      chan struct{}

	// writeMu serializes drain cycles between the periodic writer and the
	// final flushes from EndSession/Close.
	writeMu sync.Mutex

	lastDBWriteDuration time.Duration
}

// New creates a new GORM storage backend. Nil mode callbacks default to a
// valid, non-local, unpaused database.
func New(deps Dependencies) *Backend {
	if deps.IsDatabaseValid == nil {
		valid := deps.DB != nil
		deps.IsDatabaseValid = func() bool { return valid }
	}
	if deps.ShouldSaveLocal == nil {
		deps.ShouldSaveLocal = func() bool { return false }
	}
	if deps.DBInsertsPaused == nil {
		deps.DBInsertsPaused = func() bool { return false }
	}
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stop = make(chan struct{})
	b.startWriter()
	return nil
}

// Close stops the DB writer goroutine and flushes anything still queued.
func (b *Backend) Close() error {
	if b.stop != nil {
		close(b.stop)
	}
	if b.queues != nil && b.deps.IsDatabaseValid() {
		b.drainQueues()
	}
	return nil
}

// StartSession performs site get-or-insert and session create in the DB.
func (b *Backend) StartSession(coreSession *core.Session, coreSite *core.Site) error {
	if b.deps.DB == nil {
		return nil
	}

	db := b.deps.DB

	gormSite := convert.CoreToSite(*coreSite)
	created, err := gormSite.GetOrInsert(db)
	if err != nil {
		return fmt.Errorf("failed to get or insert site: %w", err)
	}
	if created {
		b.deps.LogManager.WriteLog("StartSession", fmt.Sprintf("Inserted new site %q", gormSite.Name), "INFO")
	}

	gormSession := convert.CoreToSession(*coreSession)
	gormSession.SiteID = gormSite.ID
	gormSession.Site = gormSite
	if err := db.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	// Hand the DB-generated IDs back to the caller's structs.
	coreSession.ID = gormSession.ID
	coreSite.ID = gormSite.ID

	// Store session ID for the DB writer goroutine
	b.sessionID.Store(uint64(gormSession.ID))
	b.origin = geo.SiteLocation3857(coreSite.Longitude, coreSite.Latitude, coreSite.Altitude)

	return nil
}

// SetSessionID sets the current session ID for the DB writer (used by CLI tools).
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// EndSession flushes every pending write so the recording is complete in the
// DB before the session closes.
func (b *Backend) EndSession() error {
	if b.queues != nil && b.deps.IsDatabaseValid() {
		b.drainQueues()
	}
	return nil
}

// AddLaunch converts a core launch to GORM and pushes to the write queue.
func (b *Backend) AddLaunch(l *core.Launch) error {
	gormObj := convert.CoreToLaunch(*l)
	b.queues.Launches.Push(gormObj)
	return nil
}

// RecordSample converts and queues a trajectory sample.
func (b *Backend) RecordSample(s *core.SampleState) error {
	gormObj := convert.CoreToSampleState(*s, b.origin)
	b.queues.SampleStates.Push(gormObj)
	return nil
}

// RecordLanding converts and queues a landing event.
func (b *Backend) RecordLanding(e *core.LandingEvent) error {
	gormObj := convert.CoreToLandingEvent(*e, b.origin)
	b.queues.LandingEvents.Push(gormObj)
	return nil
}

// RecordFlightPath rebuilds the launch row with the completed-flight summary
// and queues it for update. On the SQLite fallback the georeferenced trail is
// dropped (no PostGIS); the summary columns are still written.
func (b *Backend) RecordFlightPath(p *core.FlightPath) error {
	coreLaunch, ok := b.deps.LaunchCache.Get(p.TrajectoryID)
	if !ok {
		return fmt.Errorf("no launch cached for trajectory %d", p.TrajectoryID)
	}

	row := convert.CoreToLaunch(coreLaunch)
	convert.ApplyFlightPath(&row, *p, b.origin)
	if b.deps.ShouldSaveLocal() {
		row.Trail = geom.Geometry{}
	}
	b.queues.FlightPaths.Push(row)
	return nil
}

// RecordProbe converts and queues a probe reading.
func (b *Backend) RecordProbe(r *core.ProbeReading) error {
	gormObj := convert.CoreToProbeReading(*r)
	b.queues.ProbeReadings.Push(gormObj)
	return nil
}

// RecordPerformance converts and queues a performance snapshot.
func (b *Backend) RecordPerformance(p *core.Performance) error {
	gormObj := convert.CoreToPerformance(*p)
	b.queues.Performances.Push(gormObj)
	return nil
}

// GetLaunch looks up a cached launch by trajectory ID.
func (b *Backend) GetLaunch(trajectoryID uint16) (core.Launch, bool) {
	return b.deps.LaunchCache.Get(trajectoryID)
}

// LastWriteDuration returns the duration of the last queue drain cycle.
func (b *Backend) LastWriteDuration() time.Duration {
	return b.lastDBWriteDuration
}

// QueueLengths snapshots the write queue depths for the monitor.
func (b *Backend) QueueLengths() core.WriteQueueLengths {
	if b.queues == nil {
		return core.WriteQueueLengths{}
	}
	return core.WriteQueueLengths{
		Launches:    b.queues.Launches.Len(),
		Samples:     b.queues.SampleStates.Len(),
		Landings:    b.queues.LandingEvents.Len(),
		FlightPaths: b.queues.FlightPaths.Len(),
		Probes:      b.queues.ProbeReadings.Len(),
	}
}

// writeQueue drains q into the DB inside one transaction. A failed batch
// goes back on the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, report func(string, string, string), prepare func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}
	err := tx.Create(&items).Error
	if err != nil {
		report(":DB:WRITER:", fmt.Sprintf("Insert of %s failed: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
}

// flushFlightPaths saves completed-flight launch rows one at a time.
// Save updates by composite primary key; the launch insert queue is always
// drained first in the same cycle.
func (b *Backend) flushFlightPaths(sessionID uint) {
	if b.queues.FlightPaths.Empty() {
		return
	}

	rows := b.queues.FlightPaths.Drain()
	for i := range rows {
		rows[i].SessionID = sessionID
		if err := b.deps.DB.Save(&rows[i]).Error; err != nil {
			b.deps.LogManager.WriteLog(":DB:WRITER:", fmt.Sprintf("Error saving flight path: %v", err), "ERROR")
			b.queues.FlightPaths.Push(rows[i])
		}
	}
}

// drainQueues writes every queue to the DB once.
func (b *Backend) drainQueues() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	report := b.deps.LogManager.WriteLog

	// One session ID per cycle, even if EndSession lands mid-drain.
	sessionID := uint(b.sessionID.Load())

	// stampSessionID helpers
	stampLaunches := func(items []model.Launch) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampSampleStates := func(items []model.SampleState) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampLandingEvents := func(items []model.LandingEvent) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampProbeReadings := func(items []model.ProbeReading) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampPerformances := func(items []model.Performance) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}

	start := time.Now()

	// Launches first so sample and landing FKs resolve
	writeQueue(b.deps.DB, b.queues.Launches, "launches", report, stampLaunches)

	// State updates
	writeQueue(b.deps.DB, b.queues.SampleStates, "sample states", report, stampSampleStates)
	writeQueue(b.deps.DB, b.queues.LandingEvents, "landing events", report, stampLandingEvents)
	b.flushFlightPaths(sessionID)

	// Readings and health
	writeQueue(b.deps.DB, b.queues.ProbeReadings, "probe readings", report, stampProbeReadings)
	writeQueue(b.deps.DB, b.queues.Performances, "performances", report, stampPerformances)

	b.lastDBWriteDuration = time.Since(start)
}

// startWriter runs the periodic drain goroutine.
func (b *Backend) startWriter() {
	go func() {
		tick := time.NewTicker(writeInterval)
		defer tick.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-tick.C:
				if !b.deps.IsDatabaseValid() || b.deps.DBInsertsPaused() {
					continue
				}
				b.drainQueues()
			}
		}
	}()
}
