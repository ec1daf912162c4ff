package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/rangelab/trajector/internal/config"
	"github.com/rangelab/trajector/internal/storage"
	"github.com/rangelab/trajector/internal/storage/memory"
	pgstorage "github.com/rangelab/trajector/internal/storage/postgres"
	sqlitestorage "github.com/rangelab/trajector/internal/storage/sqlite"
	wsstorage "github.com/rangelab/trajector/internal/storage/websocket"
	"github.com/rangelab/trajector/internal/worker"
)

func initStorage(dbLog zerolog.Logger) error {
	cfg := config.GetStorageConfig()

	backend, err := newBackend(cfg, dbLog)
	if err != nil {
		Logger.Error("Could not build storage backend", "type", cfg.Type, "error", err)
		return err
	}

	if err := backend.Init(); err != nil {
		if cfg.Type != "postgres" {
			Logger.Error("Storage backend init failed", "type", cfg.Type, "error", err)
			return err
		}
		// A range session must not be lost to a dead DB server. The
		// recording drops to the local SQLite backend; `trajector-cli
		// -mode backups` folds the dump into Postgres later.
		Logger.Warn("Postgres unavailable, recording to local SQLite instead", "error", err)
		fallback, ferr := newSQLiteBackend(cfg.SQLite)
		if ferr != nil {
			return fmt.Errorf("sqlite fallback: %w", ferr)
		}
		if ierr := fallback.Init(); ierr != nil {
			return fmt.Errorf("sqlite fallback: %w", ierr)
		}
		backend = fallback
		cfg.Type = "sqlite"
	}
	storageBackend = backend

	// Recording lands on this machine unless Postgres is carrying it.
	ShouldSaveLocal = cfg.Type != "postgres" && cfg.Type != "websocket"

	deps := worker.Dependencies{
		Engine:         simEngine,
		SessionContext: sessionContext,
		LaunchCache:    launchCache,
		Influx:         influxManager,
		LogManager:     Logs,
		ParserService:  parserService,
		Landings:       landings,
	}
	workers = worker.New(deps, storageBackend)
	workers.RegisterHandlers(events)
	Logger.Info("Worker handlers registered with dispatcher", "backend", cfg.Type)

	return nil
}

func newBackend(cfg config.StorageConfig, dbLog zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		Logger.Info("Using Postgres storage")
		deps := pgstorage.Dependencies{
			DBLog:          dbLog,
			LaunchCache:    launchCache,
			LogManager:     Logs,
			SessionContext: sessionContext,
		}
		return pgstorage.New(deps), nil

	case "sqlite":
		return newSQLiteBackend(cfg.SQLite)

	case "websocket":
		wsCfg := wsstorage.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}
		if wsCfg.URL == "" {
			wsCfg.URL = httpToWS(viper.GetString("api.serverUrl")) + "/api"
		}
		if wsCfg.Secret == "" {
			wsCfg.Secret = viper.GetString("api.apiKey")
		}
		Logger.Info("Using WebSocket storage", "url", wsCfg.URL)
		return wsstorage.New(wsCfg), nil

	default:
		Logger.Info("Using in-memory storage", "outputDir", cfg.Memory.OutputDir)
		return memory.New(cfg.Memory), nil
	}
}

// newSQLiteBackend builds the local backend, defaulting the dump file into
// the working directory stamped with the service start time.
func newSQLiteBackend(cfg config.SQLiteConfig) (storage.Backend, error) {
	dumpPath := cfg.Path
	if dumpPath == "" {
		dumpPath = filepath.Join(WorkDir, fmt.Sprintf("%s_%s.db", ServiceName, SessionStartTime.Format("20060102_150405")))
	}
	backend, err := sqlitestorage.New(sqlitestorage.Config{
		DumpInterval: cfg.DumpInterval,
		DumpPath:     dumpPath,
	}, launchCache, Logs)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
	}
	Logger.Info("Using local SQLite storage", "path", dumpPath)
	return backend, nil
}

// httpToWS rewrites an http(s) origin into its ws(s) counterpart.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	if rest, ok := strings.CutPrefix(s, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(s, "http://"); ok {
		return "ws://" + rest
	}
	return s
}
