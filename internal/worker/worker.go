package worker

import (
	"time"

	"github.com/rangelab/trajector/internal/cache"
	"github.com/rangelab/trajector/internal/channel"
	"github.com/rangelab/trajector/internal/engine"
	"github.com/rangelab/trajector/internal/influx"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/parser"
	"github.com/rangelab/trajector/internal/session"
	"github.com/rangelab/trajector/internal/storage"
	"github.com/rangelab/trajector/pkg/core"
)

// Dependencies carries the shared state every command handler can touch.
type Dependencies struct {
	Engine         *engine.Engine
	SessionContext *session.Context
	LaunchCache    *cache.LaunchCache
	Influx         *influx.Manager
	LogManager     *logging.Manager
	ParserService  *parser.Parser

	// Landings receives every ground contact as it is recorded, for
	// consumers outside the command pipeline. Optional.
	Landings channel.Sender[core.LandingEvent]
}

// Manager owns the command handlers that drive the engine and feed the
// storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// New wires the command handlers to their storage backend.
func New(deps Dependencies, backend storage.Backend) *Manager {
	return &Manager{deps: deps, backend: backend}
}

// WriteDurationProvider is implemented by backends that track how long
// their last write burst took.
type WriteDurationProvider interface {
	LastWriteDuration() time.Duration
}

// LastWriteDuration reports the backend's most recent write burst, or 0
// for backends that do not track one.
func (m *Manager) LastWriteDuration() time.Duration {
	if p, ok := m.backend.(WriteDurationProvider); ok {
		return p.LastWriteDuration()
	}
	return 0
}

// QueueLengthsProvider is implemented by backends that batch writes
// through internal queues.
type QueueLengthsProvider interface {
	QueueLengths() core.WriteQueueLengths
}

// QueueLengths snapshots the backend write queues. Backends that write
// through directly report zeros.
func (m *Manager) QueueLengths() core.WriteQueueLengths {
	if p, ok := m.backend.(QueueLengthsProvider); ok {
		return p.QueueLengths()
	}
	return core.WriteQueueLengths{}
}
