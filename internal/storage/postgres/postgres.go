// Package pgstorage implements the storage.Backend interface on PostgreSQL.
// It wraps the shared GORM backend; the Postgres-specific concerns are
// connection setup, the PostGIS extension, and schema migration.
package pgstorage

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rangelab/trajector/internal/cache"
	"github.com/rangelab/trajector/internal/database"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/session"
	gormstorage "github.com/rangelab/trajector/internal/storage/gorm"
)

// Dependencies carries what the backend needs besides the connection itself.
type Dependencies struct {
	DB             *gorm.DB // optional; a standalone connection is made when nil
	DBLog          zerolog.Logger
	LaunchCache    *cache.LaunchCache
	LogManager     *logging.Manager
	SessionContext *session.Context
}

// Backend wraps the GORM backend for Postgres-specific behavior.
type Backend struct {
	*gormstorage.Backend
	deps    Dependencies
	dbReady bool
}

// New builds the backend without touching the network. Init makes the
// connection, so the factory stays free of side effects.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init connects to Postgres (unless a DB was injected), migrates the schema,
// and starts the embedded GORM backend.
func (b *Backend) Init() error {
	mgr := &database.Manager{DB: b.deps.DB, Log: b.deps.DBLog}
	if mgr.DB == nil {
		if err := mgr.Open(); err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		b.deps.DB = mgr.DB
	}
	if err := mgr.Migrate(); err != nil {
		return fmt.Errorf("prepare postgres schema: %w", err)
	}
	b.dbReady = true

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:              b.deps.DB,
		LaunchCache:     b.deps.LaunchCache,
		LogManager:      b.deps.LogManager,
		SessionContext:  b.deps.SessionContext,
		IsDatabaseValid: func() bool { return b.dbReady },
	})
	return b.Backend.Init()
}

// DB returns the underlying GORM handle, nil before Init connects.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Close stops the embedded GORM backend.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
