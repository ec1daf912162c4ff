// Package sqlitestorage keeps the whole recording in an in-memory SQLite
// database and periodically dumps it to disk with VACUUM INTO. It wraps
// the GORM backend by composition; the concerns layered on top are the
// in-memory DB itself, forcing local mode so launch trail geometry is
// skipped (no PostGIS), migrating the reduced schema, and the dump loop.
package sqlitestorage

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rangelab/trajector/internal/cache"
	"github.com/rangelab/trajector/internal/database"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/model"
	gormstorage "github.com/rangelab/trajector/internal/storage/gorm"
)

// Config controls the periodic VACUUM INTO dump. A zero interval or an
// empty path disables it.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string
}

// Backend is the GORM backend plus the SQLite dump machinery.
type Backend struct {
	*gormstorage.Backend
	db   *gorm.DB
	cfg  Config
	logs *logging.Manager
	stop chan struct{}
}

// New opens the in-memory database and wires the embedded GORM backend
// around it.
func New(cfg Config, launches *cache.LaunchCache, logs *logging.Manager) (*Backend, error) {
	db, err := database.OpenSQLite("")
	if err != nil {
		return nil, fmt.Errorf("open in-memory sqlite: %w", err)
	}

	inner := gormstorage.New(gormstorage.Dependencies{
		DB:              db,
		LaunchCache:     launches,
		LogManager:      logs,
		ShouldSaveLocal: func() bool { return true },
	})

	return &Backend{
		Backend: inner,
		db:      db,
		cfg:     cfg,
		logs:    logs,
		stop:    make(chan struct{}),
	}, nil
}

// Init migrates the reduced schema, brings up the embedded backend, and
// starts the dump loop when one is configured.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}

	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpInterval > 0 && b.cfg.DumpPath != "" {
		go b.runDumps()
	}

	return nil
}

// Close stops the dump loop, flushes the embedded GORM backend, and
// writes a final disk dump. Without it the in-memory DB's tail would
// vanish with the process.
func (b *Backend) Close() error {
	close(b.stop)
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.cfg.DumpPath != "" {
		if err := database.DumpToDisk(b.db, b.cfg.DumpPath); err != nil {
			return fmt.Errorf("final dump to disk: %w", err)
		}
	}
	return nil
}

// runDumps snapshots the in-memory database to disk on every tick.
// VACUUM INTO reads at a point in time, so writers are never paused.
func (b *Backend) runDumps() {
	tick := time.NewTicker(b.cfg.DumpInterval)
	defer tick.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-tick.C:
			begin := time.Now()
			err := database.DumpToDisk(b.db, b.cfg.DumpPath)
			if err != nil {
				b.logs.WriteLog("sqlite:dump", fmt.Sprintf("Disk dump failed: %v", err), "ERROR")
				continue
			}
			b.logs.WriteLog("sqlite:dump", fmt.Sprintf("Disk dump took %s", time.Since(begin)), "DEBUG")
		}
	}
}
