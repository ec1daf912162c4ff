package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rangelab/trajector/internal/storage"
	v1 "github.com/rangelab/trajector/internal/storage/memory/export/v1"
)

// filenameCleaner replaces the session name characters that are unsafe in
// file names.
var filenameCleaner = strings.NewReplacer(" ", "_", ":", "_")

// exportFilename derives the output file name from the session name and
// start time. Callers must hold b.mu.
func (b *Backend) exportFilename() string {
	ext := ".json"
	if b.cfg.CompressOutput {
		ext = ".json.gz"
	}
	return fmt.Sprintf("%s_%s%s",
		filenameCleaner.Replace(b.session.Name),
		b.session.StartTime.Format("20060102_150405"),
		ext,
	)
}

// exportJSON writes the session data to a JSON file in the v1 replay format.
// Callers must hold b.mu.
func (b *Backend) exportJSON() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, b.exportFilename())
	if err := b.writeExport(outputPath, v1.Build(b.exportData())); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

// writeExport encodes data to path, gzipped when the backend is configured
// to compress.
func (b *Backend) writeExport(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	var out io.Writer = f
	if b.cfg.CompressOutput {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		out = gz
	}
	return json.NewEncoder(out).Encode(data)
}

// exportData snapshots the buffered session into the export builder's input.
// Callers must hold b.mu.
func (b *Backend) exportData() *v1.SessionData {
	trajectories := make(map[uint16]*v1.TrajectoryRecord, len(b.trajectories))
	for id, record := range b.trajectories {
		trajectories[id] = &v1.TrajectoryRecord{
			Launch:   record.Launch,
			Samples:  record.Samples,
			Landings: record.Landings,
			Path:     record.Path,
		}
	}

	return &v1.SessionData{
		Session:      b.session,
		Site:         b.site,
		Trajectories: trajectories,
		Probes:       b.probeReadings,
		Performances: b.performances,
	}
}

// GetExportedFilePath returns the path of the last exported JSON file, or an
// empty string if nothing has been exported yet
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns upload metadata for the recorded session
func (b *Backend) GetExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	meta := storage.UploadMetadata{}
	if b.session == nil {
		return meta
	}

	meta.SessionName = b.session.Name
	meta.Tag = b.session.Tag
	if b.site != nil {
		meta.SiteName = b.site.Name
	}
	meta.SessionDuration = b.sessionDuration()

	return meta
}

// sessionDuration returns the longest recorded flight time in seconds.
// Callers must hold b.mu.
func (b *Backend) sessionDuration() float64 {
	var max float64
	for _, record := range b.trajectories {
		for _, s := range record.Samples {
			if s.FlightTime > max {
				max = s.FlightTime
			}
		}
		for _, e := range record.Landings {
			if e.FlightTime > max {
				max = e.FlightTime
			}
		}
		if record.Path != nil && record.Path.FlightDuration > max {
			max = record.Path.FlightDuration
		}
	}
	return max
}
