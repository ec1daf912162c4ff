// Command trajector-cli is the operator tool for recorded sessions: it
// renders database recordings into viewer JSON, folds local sqlite backups
// into Postgres, and reports version info. The recorder service itself is
// cmd/trajector.
package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rangelab/trajector/internal/config"
	"github.com/rangelab/trajector/internal/database"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/model"
	"github.com/rangelab/trajector/internal/model/convert"
	v1 "github.com/rangelab/trajector/internal/storage/memory/export/v1"
	"github.com/rangelab/trajector/pkg/core"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// set via ldflags at release build time
var (
	CurrentServiceVersion string = "0.0.1"
	BuildDate             string = "unknown"
)

var validModes = []string{"getjson", "backups", "version"}

var logger zerolog.Logger

func main() {
	mode := flag.String("mode", "", "one of getjson, backups, version")
	sessionID := flag.Uint("session", 0, "session id to export with -mode getjson")
	dataDir := flag.String("data", ".", "directory holding the config file and local backups")
	outDir := flag.String("out", ".", "directory for exported files")
	flag.Parse()

	var err error
	logger, err = logging.NewConsole(logging.ConsoleConfig{Level: "info"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	if !slices.Contains(validModes, *mode) {
		fmt.Fprintf(os.Stderr, "usage: trajector-cli -mode <%s> [-session N]\n", strings.Join(validModes, "|"))
		os.Exit(2)
	}

	if *mode == "version" {
		fmt.Printf("trajector-cli %s (built %s)\n", CurrentServiceVersion, BuildDate)
		return
	}

	if err := config.Load(*dataDir); err != nil {
		logger.Warn().Err(err).Msg("No config file found, using defaults")
	}

	switch *mode {
	case "getjson":
		if *sessionID == 0 {
			logger.Fatal().Msg("-session is required with -mode getjson")
		}
		db := connectPostgres()
		if err := exportSessionJSON(db, *sessionID, *outDir); err != nil {
			logger.Fatal().Err(err).Uint("session", *sessionID).Msg("Export failed")
		}

	case "backups":
		if err := migrateBackups(*dataDir); err != nil {
			logger.Fatal().Err(err).Msg("Backup migration failed")
		}
	}
}

func connectPostgres() *gorm.DB {
	logger.Info().Msg("Connecting to database...")
	db, err := database.OpenPostgres()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to access sql interface")
	}
	if err := sqlDB.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to validate connection")
	}
	sqlDB.SetMaxOpenConns(10)
	logger.Info().Msg("Database connection established")
	return db
}

// exportSessionJSON renders one recorded session into the viewer JSON
// format, gzip-compressed, identical to what the memory backend exports at
// session end.
func exportSessionJSON(db *gorm.DB, sessionID uint, outDir string) error {
	var session model.Session
	if err := db.Preload("Site").First(&session, sessionID).Error; err != nil {
		return fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}

	logger.Info().
		Str("session", session.SessionName).
		Time("start", session.StartTime).
		Msg("Exporting session")

	// One query per table, grouped in memory. Per-trajectory queries get
	// painfully slow once a session holds a few hundred flights.
	var launches []model.Launch
	if err := db.Where("session_id = ?", sessionID).Order("trajectory_id").Find(&launches).Error; err != nil {
		return fmt.Errorf("failed to load launches: %w", err)
	}

	var samples []model.SampleState
	if err := db.Where("session_id = ?", sessionID).Order("flight_time_ms").Find(&samples).Error; err != nil {
		return fmt.Errorf("failed to load samples: %w", err)
	}
	samplesByTrajectory := make(map[uint16][]model.SampleState, len(launches))
	for _, s := range samples {
		samplesByTrajectory[s.TrajectoryID] = append(samplesByTrajectory[s.TrajectoryID], s)
	}

	var landings []model.LandingEvent
	if err := db.Where("session_id = ?", sessionID).Order("flight_time_ms").Find(&landings).Error; err != nil {
		return fmt.Errorf("failed to load landing events: %w", err)
	}
	landingsByTrajectory := make(map[uint16][]model.LandingEvent, len(launches))
	for _, l := range landings {
		landingsByTrajectory[l.TrajectoryID] = append(landingsByTrajectory[l.TrajectoryID], l)
	}

	var probes []model.ProbeReading
	if err := db.Where("session_id = ?", sessionID).Order("time").Find(&probes).Error; err != nil {
		return fmt.Errorf("failed to load probe readings: %w", err)
	}

	var performances []model.Performance
	if err := db.Where("session_id = ?", sessionID).Order("time").Find(&performances).Error; err != nil {
		return fmt.Errorf("failed to load performances: %w", err)
	}

	coreSession := convert.SessionToCore(session)
	coreSite := convert.SiteToCore(session.Site)
	data := &v1.SessionData{
		Session:      &coreSession,
		Site:         &coreSite,
		Trajectories: make(map[uint16]*v1.TrajectoryRecord, len(launches)),
		Probes:       mapRows(probes, convert.ProbeReadingToCore),
		Performances: mapRows(performances, convert.PerformanceToCore),
	}
	for _, l := range launches {
		data.Trajectories[l.TrajectoryID] = &v1.TrajectoryRecord{
			Launch:   convert.LaunchToCore(l),
			Samples:  mapRows(samplesByTrajectory[l.TrajectoryID], convert.SampleStateToCore),
			Landings: mapRows(landingsByTrajectory[l.TrajectoryID], convert.LandingEventToCore),
			Path:     corePath(l, session.Site.Location),
		}
	}

	export := v1.Build(data)

	outputPath := filepath.Join(outDir, exportFilename(session.SessionName, session.StartTime))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish gzip stream: %w", err)
	}

	logger.Info().
		Str("path", outputPath).
		Int("trajectories", len(launches)).
		Int("samples", len(samples)).
		Msg("Export written")
	return nil
}

// exportFilename matches the memory backend's recording names so viewer
// uploads from either path look the same.
func exportFilename(sessionName string, start time.Time) string {
	name := strings.ReplaceAll(sessionName, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	return fmt.Sprintf("%s_%s.json.gz", name, start.Format("20060102_150405"))
}

// corePath rebuilds the completed-flight summary from the launch row, nil
// while the projectile is still airborne.
func corePath(l model.Launch, origin geom.Point) *core.FlightPath {
	if !l.ReachedGround && l.FlightDuration == 0 {
		return nil
	}
	p := convert.LaunchToFlightPath(l, origin)
	return &p
}

func mapRows[M, C any](rows []M, toCore func(M) C) []C {
	out := make([]C, 0, len(rows))
	for _, r := range rows {
		out = append(out, toCore(r))
	}
	return out
}

/// migrationTables is the backup copy order: parents before their FK
// dependents.
var migrationTables = []string{
	"service_infos",
	"sites",
	"sessions",
	"launches",
	"sample_states",
	"landing_events",
	"probe_readings",
	"performances",
}

// migrateBackups folds local sqlite dump files into the central Postgres
// database, renaming each file once its rows have landed.
func migrateBackups(dataDir string) error {
	backups, err := database.BackupPaths(dataDir)
	if err != nil {
		return fmt.Errorf("list backup databases: %w", err)
	}
	if len(backups) == 0 {
		logger.Info().Str("dir", dataDir).Msg("No backup databases found")
		return nil
	}
	logger.Info().Strs("paths", backups).Msg("Found backup databases")

	postgresDB := connectPostgres()

	migrated := make([]string, 0, len(backups))
	for _, path := range backups {
		sqliteDB, err := database.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("open sqlite database %s: %w", path, err)
		}

		// one transaction per backup file, a bad dump rolls back as a unit
		tx := postgresDB.Begin()
		for _, table := range migrationTables {
			if err := copyTable(sqliteDB, tx, table); err != nil {
				tx.Rollback()
				return fmt.Errorf("migrating %s from %s: %w", table, path, err)
			}
		}
		tx.Commit()

		// done with this backup, close it and mark the file so a rerun
		// skips it
		conn, err := sqliteDB.DB()
		if err != nil {
			logger.Error().Err(err).Msg("Error getting sqlite connection")
			continue
		}
		if err = conn.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing sqlite connection")
		}
		if err = os.Rename(path, path+".migrated"); err != nil {
			logger.Error().Err(err).Msg("Error renaming sqlite file")
		}
		migrated = append(migrated, path)
	}

	logger.Info().
		Int("count", len(migrated)).
		Strs("paths", migrated).
		Msg("Migrated backups, delete the .migrated files to avoid future data duplication")
	return nil
}

// copyTable copies every row of one table from a sqlite backup into the
// Postgres transaction. Row ids are carried over; rows that landed on an
// earlier run are skipped rather than remapped.
func copyTable(src, dst *gorm.DB, table string) error {
	var rows []map[string]any
	if err := src.Table(table).Find(&rows).Error; err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	logger.Info().Int("count", len(rows)).Str("table", table).Msg("Found records")

	if len(rows) == 0 {
		return nil
	}

	err := dst.Table(table).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}
