package memory

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rangelab/trajector/internal/config"
	v1 "github.com/rangelab/trajector/internal/storage/memory/export/v1"
	"github.com/rangelab/trajector/pkg/core"
)

// startedBackend returns a backend with an open session named name,
// recording into a fresh temp dir.
func startedBackend(t *testing.T, name string, compress bool) *Backend {
	t.Helper()

	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: compress})
	err := b.StartSession(&core.Session{
		Name:      name,
		Tag:       "Range",
		StartTime: time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC),
		Gravity:   9.81,
		StepMs:    75,
	}, &core.Site{Name: "North Range"})
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return b
}

// readExport decodes the file at path, transparently ungzipping .gz files.
func readExport(t *testing.T, path string) v1.Export {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		defer gz.Close()
		r = gz
	}

	var export v1.Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	return export
}

func TestExportPlainJSON(t *testing.T) {
	b := startedBackend(t, "Export Test", false)
	_ = b.AddLaunch(&core.Launch{TrajectoryID: 1, Preset: "golfball"})

	// EndSession triggers export
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	out := b.GetExportedFilePath()
	if got := filepath.Base(out); got != "Export_Test_20260825_093000.json" {
		t.Fatalf("exported file = %s", got)
	}

	export := readExport(t, out)
	if export.SessionName != "Export Test" {
		t.Errorf("SessionName = %q", export.SessionName)
	}
	if export.SiteName != "North Range" {
		t.Errorf("SiteName = %q", export.SiteName)
	}
	if export.StepMs != 75 {
		t.Errorf("StepMs = %d, want 75", export.StepMs)
	}
	if len(export.Trajectories) != 2 {
		t.Fatalf("trajectory slots = %d, want 2", len(export.Trajectories))
	}
	if export.Trajectories[1].Preset != "golfball" {
		t.Errorf("Trajectories[1].Preset = %q", export.Trajectories[1].Preset)
	}
}

func TestExportGzip(t *testing.T) {
	b := startedBackend(t, "Gzip Test", true)
	_ = b.AddLaunch(&core.Launch{TrajectoryID: 1, Preset: "golfball"})

	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	out := b.GetExportedFilePath()
	if got := filepath.Base(out); got != "Gzip_Test_20260825_093000.json.gz" {
		t.Fatalf("exported file = %s", got)
	}

	if export := readExport(t, out); export.SessionName != "Gzip Test" {
		t.Errorf("SessionName = %q", export.SessionName)
	}
}

func TestExportFilenames(t *testing.T) {
	cases := []struct {
		session  string
		compress bool
		want     string
	}{
		{"Simple Name", false, "Simple_Name_20260825_093000.json"},
		{"Simple Name", true, "Simple_Name_20260825_093000.json.gz"},
		{"Name:With:Colons", false, "Name_With_Colons_20260825_093000.json"},
	}

	for _, tc := range cases {
		b := startedBackend(t, tc.session, tc.compress)
		if err := b.EndSession(); err != nil {
			t.Fatalf("EndSession failed for %q: %v", tc.session, err)
		}
		if got := filepath.Base(b.GetExportedFilePath()); got != tc.want {
			t.Errorf("session %q exported as %s, want %s", tc.session, got, tc.want)
		}
	}
}

func TestExportCreatesMissingDir(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "output", "dir")
	b := New(config.MemoryConfig{OutputDir: nested})

	_ = b.StartSession(&core.Session{Name: "Nested", StartTime: time.Now()}, &core.Site{Name: "Range"})
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	out := b.GetExportedFilePath()
	if filepath.Dir(out) != nested {
		t.Errorf("export landed in %s, want %s", filepath.Dir(out), nested)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("exported file missing: %v", err)
	}
}

func TestExportSampleRowFormat(t *testing.T) {
	b := startedBackend(t, "Row Format", false)
	_ = b.AddLaunch(&core.Launch{TrajectoryID: 1})
	_ = b.RecordSample(&core.SampleState{
		TrajectoryID: 1,
		FlightTime:   0.075,
		X:            1.5,
		Y:            12.3,
		VX:           18.0,
		VY:           9.4,
	})
	_ = b.RecordLanding(&core.LandingEvent{TrajectoryID: 1, FlightTime: 3.625, X: 86.4})

	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	export := readExport(t, b.GetExportedFilePath())
	if len(export.Trajectories) != 2 {
		t.Fatalf("trajectory slots = %d, want 2", len(export.Trajectories))
	}
	samples := export.Trajectories[1].Samples
	if len(samples) != 1 {
		t.Fatalf("sample rows = %d, want 1", len(samples))
	}

	// JSON numbers decode as float64
	row := samples[0]
	if len(row) != 4 {
		t.Fatalf("sample row has %d elements, want 4", len(row))
	}
	if row[0].(float64) != 75 {
		t.Errorf("flightMs = %v, want 75", row[0])
	}
	pos := row[1].([]any)
	if pos[0].(float64) != 1.5 || pos[1].(float64) != 12.3 {
		t.Errorf("position = %v, want [1.5, 12.3]", pos)
	}

	if len(export.Events) != 1 {
		t.Fatalf("event rows = %d, want 1", len(export.Events))
	}
	event := export.Events[0]
	if event[1].(string) != "landed" {
		t.Errorf("event type = %v, want landed", event[1])
	}
	if event[3].(float64) != 86.4 {
		t.Errorf("impactX = %v, want 86.4", event[3])
	}
	if export.EndFlightMs != 3625 {
		t.Errorf("EndFlightMs = %d, want 3625", export.EndFlightMs)
	}
}

func TestExportNoFlights(t *testing.T) {
	b := startedBackend(t, "Empty", false)
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	export := readExport(t, b.GetExportedFilePath())
	if len(export.Trajectories) != 0 {
		t.Errorf("trajectories = %d, want 0", len(export.Trajectories))
	}
	if len(export.Events) != 0 {
		t.Errorf("events = %d, want 0", len(export.Events))
	}
	if export.EndFlightMs != 0 {
		t.Errorf("EndFlightMs = %d, want 0", export.EndFlightMs)
	}
}
