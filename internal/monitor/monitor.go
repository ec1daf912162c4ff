package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rangelab/trajector/internal/channel"
	"github.com/rangelab/trajector/internal/dispatcher"
	"github.com/rangelab/trajector/internal/engine"
	"github.com/rangelab/trajector/internal/influx"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/session"
	"github.com/rangelab/trajector/internal/storage"
	"github.com/rangelab/trajector/internal/worker"
	"github.com/rangelab/trajector/pkg/core"

	influxwrite "github.com/influxdata/influxdb-client-go/v2/api/write"
	"gorm.io/gorm"
)

// statusInterval is how often the monitor samples pipeline health while a
// session is active.
const statusInterval = time.Second

// Dependencies wires the monitor to the pipeline it observes.
type Dependencies struct {
	Engine         *engine.Engine
	SessionContext *session.Context
	WorkerManager  *worker.Manager
	Dispatcher     *dispatcher.Dispatcher
	Backend        storage.Backend
	Influx         *influx.Manager
	LogManager     *logging.Manager

	// Landings is the live feed consumed outside the command pipeline;
	// only its depth is observed here. Optional.
	Landings channel.Receiver[core.LandingEvent]

	// DB is only set when the backend runs on Postgres; it is used for
	// hypertable management.
	DB *gorm.DB

	StatusDir string
}

// Service periodically samples pipeline health while a session records.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stop      chan struct{}
}

// New returns an idle monitor; call Start to begin sampling.
func New(deps Dependencies) *Service {
	return &Service{
		deps: deps,
		stop: make(chan struct{}),
	}
}

// Running reports whether the sampling goroutine is live.
func (s *Service) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// snapshot collects the engine census and every pipeline depth into a
// single Performance record.
func (s *Service) snapshot() core.Performance {
	stats := s.deps.Engine.Stats()

	landingDepth := 0
	if s.deps.Landings != nil {
		landingDepth = s.deps.Landings.Len()
	}

	return core.Performance{
		Time:         time.Now(),
		Trajectories: stats.Trajectories,
		Airborne:     stats.Airborne,
		Landed:       stats.Landed,
		Buffers: core.BufferLengths{
			Ticks:   s.deps.Dispatcher.BufferLen(":TICK:"),
			Metrics: s.deps.Dispatcher.BufferLen(":METRIC:"),
		},
		WriteQueues:         s.deps.WorkerManager.QueueLengths(),
		LastWriteDurationMs: float32(s.deps.WorkerManager.LastWriteDuration().Milliseconds()),
		LandingChannelDepth: landingDepth,
	}
}

// jsonBlock renders v as indented JSON; marshal failures render as an
// error object instead.
func jsonBlock(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}

// GetProgramStatus returns the current health snapshot of the recording
// pipeline, optionally rendered as JSON blocks for the status feed.
func (s *Service) GetProgramStatus(rawBuffers, writeQueues, lastWrite bool) (output []string, perf core.Performance) {
	perf = s.snapshot()

	if rawBuffers {
		output = append(output, jsonBlock(perf.Buffers))
	}
	if writeQueues {
		output = append(output, jsonBlock(perf.WriteQueues))
	}
	if lastWrite {
		output = append(output, jsonBlock(perf.LastWriteDurationMs))
	}
	return output, perf
}

// hypertableExists asks TimescaleDB whether the table has already been
// converted. Errors count as not converted; conversion itself is
// idempotent.
func (s *Service) hypertableExists(table string) bool {
	row := map[string]any{}
	s.deps.DB.Raw(
		`SELECT hypertable_name FROM timescaledb_information.hypertables WHERE hypertable_name = ?`,
		table,
	).Scan(&row)
	return len(row) > 0
}

// convertToHypertable turns one flight sample table into a hypertable
// chunked by day, with compression on the given segment columns after two
// weeks.
func (s *Service) convertToHypertable(table string, segmentBy []string) error {
	tag := "ensureHypertables"

	steps := []struct {
		action string
		query  string
		args   []any
	}{
		{
			action: "hypertable conversion",
			query:  fmt.Sprintf(`SELECT create_hypertable('%s', 'time', chunk_time_interval => interval '1 day', if_not_exists => true)`, table),
		},
		{
			action: "compression",
			query:  fmt.Sprintf(`ALTER TABLE %s SET (timescaledb.compress, timescaledb.compress_segmentby = ?)`, table),
			args:   []any{strings.Join(segmentBy, ",")},
		},
		{
			action: "compression policy",
			query:  fmt.Sprintf(`SELECT add_compression_policy('%s', compress_after => interval '14 day')`, table),
		},
	}

	for _, step := range steps {
		if err := s.deps.DB.Exec(step.query, step.args...).Error; err != nil {
			s.deps.LogManager.WriteLog(tag, fmt.Sprintf("%s failed for %s: %s", step.action, table, err), "ERROR")
			return err
		}
		s.deps.LogManager.WriteLog(tag, fmt.Sprintf("Finished %s for %s", step.action, table), "INFO")
	}
	return nil
}

// EnsureHypertables converts the named tables into TimescaleDB
// hypertables, skipping any that were converted on a previous run. Map
// keys are table names, values the compress_segmentby columns.
func (s *Service) EnsureHypertables(tables map[string][]string) error {
	for table, segmentBy := range tables {
		if s.hypertableExists(table) {
			s.deps.LogManager.WriteLog("ensureHypertables", fmt.Sprintf("Table %s is already configured", table), "INFO")
			continue
		}
		if err := s.convertToHypertable(table, segmentBy); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the sampling goroutine. Starting a running monitor is a
// no-op.
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	go s.run()
}

func (s *Service) run() {
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	log := s.deps.LogManager.Logger()
	log.Debug("Status monitor started")

	statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
	if err != nil {
		log.Error("Error creating status file", "error", err)
	} else {
		defer statusFile.Close()
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		if !s.deps.SessionContext.Active() {
			continue
		}

		lines, perf := s.GetProgramStatus(true, true, true)
		writeStatusFile(statusFile, lines)

		if err := s.deps.Backend.RecordPerformance(&perf); err != nil {
			log.Error("Error recording performance snapshot", "error", err)
		}
		s.writePerformanceMetric(&perf)
	}
}

// writeStatusFile replaces the file contents with the latest snapshot.
func writeStatusFile(f *os.File, lines []string) {
	if f == nil {
		return
	}
	f.Truncate(0)
	f.Seek(0, 0)
	for _, line := range lines {
		fmt.Fprintln(f, line)
	}
}

// writePerformanceMetric mirrors the snapshot to InfluxDB.
func (s *Service) writePerformanceMetric(perf *core.Performance) {
	if s.deps.Influx == nil {
		return
	}

	point := influxwrite.NewPointWithMeasurement("engine_status").
		AddTag("sessionUid", s.deps.SessionContext.GetSession().UID).
		AddField("trajectories", perf.Trajectories).
		AddField("airborne", perf.Airborne).
		AddField("landed", perf.Landed).
		AddField("tickBuffer", perf.Buffers.Ticks).
		AddField("metricBuffer", perf.Buffers.Metrics).
		AddField("launchQueue", perf.WriteQueues.Launches).
		AddField("sampleQueue", perf.WriteQueues.Samples).
		AddField("landingQueue", perf.WriteQueues.Landings).
		AddField("flightPathQueue", perf.WriteQueues.FlightPaths).
		AddField("probeQueue", perf.WriteQueues.Probes).
		AddField("lastWriteMs", float64(perf.LastWriteDurationMs)).
		AddField("landingChannelDepth", perf.LandingChannelDepth).
		SetTime(perf.Time)

	if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketEnginePerformance, point); err != nil {
		s.deps.LogManager.Logger().Error("Error writing performance metric", "error", err)
	}
}

// Stop signals the sampling goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stop)
	}
}
