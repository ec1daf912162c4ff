// Package database opens and prepares the GORM connections behind the
// recording backends and the operator CLI. Postgres carries shared range
// deployments; SQLite carries single-machine recordings and the backup
// dumps the CLI later folds back into Postgres.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rangelab/trajector/internal/model"
)

// sqlitePragmas tunes the embedded DB for a single sustained writer.
// Durability comes from VACUUM INTO snapshots, not the journal.
var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
	"PRAGMA page_size = 32768;",
	"PRAGMA mmap_size = 30000000000;",
}

// postgresSettings tunes GORM for the batch writer: it wraps its own
// transactions, so the implicit one is off, and the query log is discarded.
func postgresSettings() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        5000,
		Logger:                 logger.Discard,
	}
}

// sqliteSettings derives from the postgres tuning; statement caching is
// added because the embedded driver re-parses on every insert otherwise.
func sqliteSettings() *gorm.Config {
	cfg := postgresSettings()
	cfg.PrepareStmt = true
	cfg.CreateBatchSize = 1000
	return cfg
}

// OpenPostgres connects to the Postgres database named in the service
// configuration.
func OpenPostgres() (*gorm.DB, error) {
	host := viper.GetString("db.host")
	port := viper.GetInt("db.port")
	user := viper.GetString("db.username")
	pass := viper.GetString("db.password")
	name := viper.GetString("db.database")
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, pass, name)
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), postgresSettings())
}

// OpenSQLite opens the database at path, or a shared in-memory database
// when path is empty, and applies the write-tuned pragmas.
func OpenSQLite(path string) (*gorm.DB, error) {
	target := "file::memory:?cache=shared"
	if path != "" {
		target = path
	}
	db, err := gorm.Open(sqlite.Open(target), sqliteSettings())
	if err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	return db, nil
}

// Manager owns the primary database connection for the recording service.
type Manager struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// Open connects to the configured Postgres database and proves the
// connection with a ping.
func (m *Manager) Open() error {
	db, err := OpenPostgres()
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	// inserts come from one writer goroutine, a small pool is plenty
	sqlDB.SetMaxOpenConns(10)
	m.DB = db
	m.Log.Info().Str("database", viper.GetString("db.database")).Msg("Connected to Postgres")
	return nil
}

// Migrate seeds the service info row, installs PostGIS when the
// connection is Postgres, and migrates the recording schema.
func (m *Manager) Migrate() error {
	if !m.DB.Migrator().HasTable(&model.ServiceInfo{}) {
		if err := m.DB.AutoMigrate(&model.ServiceInfo{}); err != nil {
			return fmt.Errorf("create service_infos table: %w", err)
		}
		seed := model.ServiceInfo{
			ServiceName:        "Trajector",
			ServiceDescription: "Projectile flight recorder",
			ServiceWebsite:     "https://rangelab.dev/trajector",
		}
		if err := m.DB.Create(&seed).Error; err != nil {
			return fmt.Errorf("seed service_infos: %w", err)
		}
	}

	if m.DB.Name() == "postgres" {
		if err := m.DB.Exec("CREATE EXTENSION IF NOT EXISTS postgis;").Error; err != nil {
			return fmt.Errorf("create postgis extension: %w", err)
		}
		m.Log.Info().Msg("PostGIS extension ready")
	}

	m.Log.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// DumpToDisk snapshots an in-memory SQLite database to path. VACUUM INTO
// refuses to overwrite, so a stale file from a previous dump goes first.
func DumpToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return fmt.Errorf("no dump path set")
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing stale dump: %w", err)
		}
	}
	if err := db.Exec(fmt.Sprintf("VACUUM INTO 'file:%s';", path)).Error; err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}

// BackupPaths lists the .db dump files in dir, the ones `trajector-cli
// -mode backups` folds into Postgres.
func BackupPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
