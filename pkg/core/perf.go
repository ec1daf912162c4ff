// pkg/core/perf.go
package core

import "time"

// BufferLengths snapshots the dispatcher-side command buffers.
type BufferLengths struct {
	Ticks   int
	Metrics int
}

// WriteQueueLengths snapshots the storage-side write queues.
type WriteQueueLengths struct {
	Launches    int
	Samples     int
	Landings    int
	FlightPaths int
	Probes      int
}

// Performance is a periodic health snapshot of the recording pipeline.
type Performance struct {
	Time                time.Time
	Trajectories        int
	Airborne            int
	Landed              int
	Buffers             BufferLengths
	WriteQueues         WriteQueueLengths
	LastWriteDurationMs float32
	LandingChannelDepth int
}
