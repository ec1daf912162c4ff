package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelab/trajector/internal/ballistics"
	"github.com/rangelab/trajector/internal/engine"
	"github.com/rangelab/trajector/internal/otel"
)

// loadConfig writes body as the config file in a fresh directory and loads
// it, resetting viper when the test ends.
func loadConfig(t *testing.T, body string) {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	require.NoError(t, Load(dir))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	loadConfig(t, `{
		"logLevel": "warn",
		"session": { "tag": "Qualifier" },
		"db": { "host": "192.168.4.20", "port": "5439" }
	}`)

	assert.Equal(t, "warn", viper.GetString("logLevel"))
	assert.Equal(t, "Qualifier", viper.GetString("session.tag"))
	assert.Equal(t, "192.168.4.20", viper.GetString("db.host"))
	assert.Equal(t, "5439", viper.GetString("db.port"))
	// Keys the file does not mention keep their defaults.
	assert.Equal(t, "Default Range", viper.GetString("site.name"))
}

func TestLoad_Defaults(t *testing.T) {
	loadConfig(t, `{}`)

	want := []struct {
		key   string
		value any
	}{
		{"logLevel", "info"},
		{"logsDir", "./trajlogs"},
		{"traceLog", false},
		{"session.tag", "Range"},
		{"simulation.gravity", 9.81},
		{"simulation.altitude", 0.0},
		{"simulation.stepMs", 25},
		{"simulation.minorIntervalMs", 50},
		{"simulation.sensingRadius", 0.2},
		{"defaults.preset", "cannonball"},
		{"defaults.angle", 80.0},
		{"defaults.speed", 18.0},
		{"defaults.airResistance", false},
		{"api.serverUrl", "http://localhost:5000/api"},
		{"api.apiKey", ""},
		{"db.host", "localhost"},
		{"db.port", "5432"},
		{"db.username", "postgres"},
		{"db.password", "postgres"},
		{"db.database", "trajector"},
		{"influx.enabled", true},
		{"influx.org", "trajector-metrics"},
		{"graylog.enabled", true},
		{"graylog.address", "localhost:12201"},
		{"storage.type", "memory"},
		{"storage.memory.outputDir", "./recordings"},
		{"storage.memory.compressOutput", true},
		{"storage.sqlite.dumpInterval", "3m"},
		{"storage.websocket.url", "ws://localhost:5001/ws"},
		{"otel.enabled", false},
		{"otel.serviceName", "trajector"},
		{"otel.batchTimeout", "5s"},
		{"otel.endpoint", ""},
		{"otel.insecure", true},
		{"site.name", "Default Range"},
		{"site.coords", "0,0"},
	}
	for _, tc := range want {
		assert.Equal(t, tc.value, viper.Get(tc.key), tc.key)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(filepath.Join(t.TempDir(), "nothing-here"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_EnvPointsAtExplicitFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "pinned.json")
	require.NoError(t, os.WriteFile(path, []byte(`{ "session": { "tag": "Pinned" } }`), 0644))
	t.Setenv(EnvConfig, path)

	// The directory argument has no config file; the env var wins.
	require.NoError(t, Load(t.TempDir()))
	assert.Equal(t, "Pinned", viper.GetString("session.tag"))
}

func TestGetSimulationSettings(t *testing.T) {
	loadConfig(t, `{ "simulation": { "gravity": 1.62, "altitude": 1500 } }`)

	assert.Equal(t, engine.Settings{
		Gravity:         1.62,
		Altitude:        1500,
		StepMs:          25,
		MinorIntervalMs: 50,
		SensingRadius:   0.2,
	}, GetSimulationSettings())
}

func TestGetLaunchDefaults_Preset(t *testing.T) {
	loadConfig(t, `{}`)

	d := GetLaunchDefaults()
	assert.Equal(t, ballistics.Config{
		Angle:           80,
		Speed:           18,
		Mass:            17.60,
		Diameter:        0.18,
		DragCoefficient: 0.47,
		Preset:          "cannonball",
	}, d)
	assert.NoError(t, d.Validate())
}

func TestGetLaunchDefaults_ExplicitOverridesPreset(t *testing.T) {
	loadConfig(t, `{
		"defaults": {
			"preset": "golfball",
			"mass": 0.2,
			"airResistance": true
		}
	}`)

	// Mass comes from the file, diameter and drag from the golfball preset.
	assert.Equal(t, ballistics.Config{
		Angle:           80,
		Speed:           18,
		Mass:            0.2,
		Diameter:        0.043,
		DragCoefficient: 0.25,
		AirResistance:   true,
		Preset:          "golfball",
	}, GetLaunchDefaults())
}

func TestStorageConfig_Defaults(t *testing.T) {
	loadConfig(t, `{}`)

	assert.Equal(t, StorageConfig{
		Type:      "memory",
		Memory:    MemoryConfig{OutputDir: "./recordings", CompressOutput: true},
		SQLite:    SQLiteConfig{DumpInterval: 3 * time.Minute},
		WebSocket: WebSocketConfig{URL: "ws://localhost:5001/ws"},
	}, GetStorageConfig())
}

func TestStorageConfig_FromFile(t *testing.T) {
	loadConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/srv/range/recordings", "compressOutput": false },
			"sqlite": { "path": "range.db", "dumpInterval": "45s" }
		}
	}`)

	assert.Equal(t, StorageConfig{
		Type:      "sqlite",
		Memory:    MemoryConfig{OutputDir: "/srv/range/recordings"},
		SQLite:    SQLiteConfig{Path: "range.db", DumpInterval: 45 * time.Second},
		WebSocket: WebSocketConfig{URL: "ws://localhost:5001/ws"},
	}, GetStorageConfig())
}

func TestOTelConfig_Defaults(t *testing.T) {
	loadConfig(t, `{}`)

	assert.Equal(t, otel.Config{
		ServiceName:  "trajector",
		BatchTimeout: 5 * time.Second,
		Insecure:     true,
	}, GetOTelConfig())
}

func TestOTelConfig_FromFile(t *testing.T) {
	loadConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "range-sim",
			"batchTimeout": "2s",
			"endpoint": "collector.range.local:4318",
			"insecure": false
		}
	}`)

	assert.Equal(t, otel.Config{
		Enabled:      true,
		ServiceName:  "range-sim",
		BatchTimeout: 2 * time.Second,
		Endpoint:     "collector.range.local:4318",
	}, GetOTelConfig())
}

func TestGetSiteConfig(t *testing.T) {
	loadConfig(t, `{
		"site": { "name": "Bench 3", "coords": "6.57,45.21", "altitude": 820 }
	}`)

	assert.Equal(t, SiteConfig{
		Name:     "Bench 3",
		Coords:   "6.57,45.21",
		Altitude: 820,
	}, GetSiteConfig())
}
