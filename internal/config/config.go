// Package config loads service configuration from a JSON file with viper,
// with defaults for every key so an empty file is a valid deployment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/rangelab/trajector/internal/ballistics"
	"github.com/rangelab/trajector/internal/engine"
	"github.com/rangelab/trajector/internal/otel"
)

// FileName is the config file looked up in the config directory.
const FileName = "trajector.cfg.json"

// EnvConfig names the environment variable that points at an explicit
// config file, bypassing the directory lookup.
const EnvConfig = "TRAJECTOR_CONFIG"

// MemoryConfig parameterizes the in-memory backend and its JSON export.
type MemoryConfig struct {
	OutputDir      string `mapstructure:"outputDir"`
	CompressOutput bool   `mapstructure:"compressOutput"`
}

// SQLiteConfig holds local SQLite backend settings
type SQLiteConfig struct {
	Path         string        `mapstructure:"path"`
	DumpInterval time.Duration `mapstructure:"dumpInterval"`
}

// WebSocketConfig holds live-streaming backend settings
type WebSocketConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// StorageConfig selects and parameterizes the storage backend
type StorageConfig struct {
	Type      string          `mapstructure:"type"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// SiteConfig is the configured launch site
type SiteConfig struct {
	Name     string
	Coords   string // "lon,lat" in EPSG:4326
	Altitude float64
}

// defaults make an absent or empty config file a valid deployment.
var defaults = map[string]any{
	"logLevel": "info",
	"logsDir":  "./trajlogs",
	"traceLog": false,

	"session.tag": "Range",

	"simulation.gravity":         9.81,
	"simulation.altitude":        0.0,
	"simulation.stepMs":          25,
	"simulation.minorIntervalMs": 50,
	"simulation.sensingRadius":   0.2,

	"defaults.preset":          "cannonball",
	"defaults.height":          0.0,
	"defaults.angle":           80.0,
	"defaults.speed":           18.0,
	"defaults.mass":            17.6,
	"defaults.diameter":        0.18,
	"defaults.dragCoefficient": 0.47,
	"defaults.airResistance":   false,

	"api.serverUrl": "http://localhost:5000/api",
	"api.apiKey":    "",

	"db.host":     "localhost",
	"db.port":     "5432",
	"db.username": "postgres",
	"db.password": "postgres",
	"db.database": "trajector",

	"influx.enabled":  true,
	"influx.host":     "localhost",
	"influx.port":     "8086",
	"influx.protocol": "http",
	"influx.token":    "trajector-dev-token",
	"influx.org":      "trajector-metrics",

	"graylog.enabled": true,
	"graylog.address": "localhost:12201",

	"storage.type":                  "memory",
	"storage.memory.outputDir":      "./recordings",
	"storage.memory.compressOutput": true,
	"storage.sqlite.path":           "",
	"storage.sqlite.dumpInterval":   "3m",
	"storage.websocket.url":         "ws://localhost:5001/ws",
	"storage.websocket.secret":      "",

	"otel.enabled":      false,
	"otel.serviceName":  "trajector",
	"otel.batchTimeout": "5s",
	"otel.endpoint":     "",
	"otel.insecure":     true,

	"site.name":     "Default Range",
	"site.coords":   "0,0",
	"site.altitude": 0.0,
}

// Load seeds the defaults and reads the config file from dir. The
// TRAJECTOR_CONFIG environment variable overrides the directory lookup
// with an explicit file path.
func Load(dir string) error {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	if path := os.Getenv(EnvConfig); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(FileName)
		viper.AddConfigPath(dir)
	}
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// GetSimulationSettings assembles the engine constants.
func GetSimulationSettings() engine.Settings {
	return engine.Settings{
		Gravity:         viper.GetFloat64("simulation.gravity"),
		Altitude:        viper.GetFloat64("simulation.altitude"),
		StepMs:          viper.GetInt("simulation.stepMs"),
		MinorIntervalMs: viper.GetInt("simulation.minorIntervalMs"),
		SensingRadius:   viper.GetFloat64("simulation.sensingRadius"),
	}
}

// GetLaunchDefaults assembles the default launch configuration. A preset
// name, when valid, supplies the body parameters; explicit keys win.
func GetLaunchDefaults() ballistics.Config {
	cfg := ballistics.Config{
		InitialHeight:   viper.GetFloat64("defaults.height"),
		Angle:           viper.GetFloat64("defaults.angle"),
		Speed:           viper.GetFloat64("defaults.speed"),
		Mass:            viper.GetFloat64("defaults.mass"),
		Diameter:        viper.GetFloat64("defaults.diameter"),
		DragCoefficient: viper.GetFloat64("defaults.dragCoefficient"),
		AirResistance:   viper.GetBool("defaults.airResistance"),
	}
	if name := viper.GetString("defaults.preset"); name != "" {
		if p, ok := ballistics.Preset(name); ok {
			base := p.Apply(cfg)
			// IsSet counts seeded defaults, so only keys the file names
			// override the preset body.
			if viper.InConfig("defaults.mass") {
				base.Mass = cfg.Mass
			}
			if viper.InConfig("defaults.diameter") {
				base.Diameter = cfg.Diameter
			}
			if viper.InConfig("defaults.dragCoefficient") {
				base.DragCoefficient = cfg.DragCoefficient
			}
			cfg = base
		}
	}
	return cfg
}

// GetStorageConfig assembles the storage backend selection.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetOTelConfig assembles the OTel provider configuration. LogWriter is
// left for the caller, which owns the log file handle.
func GetOTelConfig() otel.Config {
	return otel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetSiteConfig assembles the configured launch site.
func GetSiteConfig() SiteConfig {
	return SiteConfig{
		Name:     viper.GetString("site.name"),
		Coords:   viper.GetString("site.coords"),
		Altitude: viper.GetFloat64("site.altitude"),
	}
}
