package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one command from the simulation feed, split into its name and
// raw argument strings.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// Handler consumes one event and returns its result.
type Handler func(Event) (any, error)

// Logger is the minimal logging surface the dispatcher needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option tunes how a handler is registered.
type Option func(*registration)

type registration struct {
	queueSize int
	blocking  bool
	logged    bool
}

// Buffered runs the handler on its own goroutine behind a queue holding
// n events.
func Buffered(n int) Option {
	return func(r *registration) { r.queueSize = n }
}

// Blocking makes a buffered handler block when the queue is full instead of
// dropping.
func Blocking() Option {
	return func(r *registration) { r.blocking = true }
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(r *registration) { r.logged = true }
}

// Dispatcher routes events to registered handlers. Registration happens once
// at startup; Dispatch may then be called from the feed thread while buffered
// handlers drain on their own goroutines.
type Dispatcher struct {
	handlers map[string]Handler
	logger   Logger

	queueDepth metric.Int64ObservableGauge
	processed  metric.Int64Counter
	dropped    metric.Int64Counter

	mu     sync.RWMutex
	queues map[string]chan Event
}

// New creates a Dispatcher reporting through the global OTel meter, which is
// a no-op unless a provider is installed.
func New(log Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]Handler),
		queues:   make(map[string]chan Event),
		logger:   log,
	}
	if err := d.initMetrics(meter()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) initMetrics(m metric.Meter) error {
	var err error

	d.queueDepth, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Buffered events awaiting drain"))
	if err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}
	if _, err = m.RegisterCallback(d.observeQueues, d.queueDepth); err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events drained to completion"))
	if err != nil {
		return fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events dropped on full buffers"))
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}
	return nil
}

func (d *Dispatcher) observeQueues(ctx context.Context, o metric.Observer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, q := range d.queues {
		o.ObserveInt64(d.queueDepth, int64(len(q)),
			metric.WithAttributes(attribute.String("command", cmd)))
	}
	return nil
}

// Register adds a handler for the given command. Options wrap outside in:
// a Logged Buffered handler logs the enqueue, not the drain.
func (d *Dispatcher) Register(cmd string, h Handler, opts ...Option) {
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}

	if reg.queueSize > 0 {
		h = d.asyncHandler(cmd, reg, h)
	}
	if reg.logged {
		h = d.loggedHandler(cmd, h)
	}
	d.handlers[cmd] = h
}

// Dispatch hands the event to the handler registered for its command.
func (d *Dispatcher) Dispatch(ev Event) (any, error) {
	handler, ok := d.handlers[ev.Command]
	if !ok {
		return nil, fmt.Errorf("no handler registered for %s", ev.Command)
	}
	return handler(ev)
}

// HasHandler reports whether the command is registered.
func (d *Dispatcher) HasHandler(cmd string) bool {
	_, ok := d.handlers[cmd]
	return ok
}

// BufferLen returns the queue depth for a buffered command, or 0 for
// commands that run synchronously.
func (d *Dispatcher) BufferLen(cmd string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.queues[cmd])
}

// asyncHandler starts the drain goroutine for a buffered command and returns
// the enqueueing handler.
func (d *Dispatcher) asyncHandler(cmd string, reg registration, h Handler) Handler {
	queue := make(chan Event, reg.queueSize)

	d.mu.Lock()
	d.queues[cmd] = queue
	d.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("command", cmd))
	go func() {
		for ev := range queue {
			h(ev)
			d.processed.Add(context.Background(), 1, attrs)
		}
	}()

	push := func(ev Event) (any, error) {
		select {
		case queue <- ev:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("%s buffer full, event dropped", cmd)
		}
	}
	if reg.blocking {
		push = func(ev Event) (any, error) {
			queue <- ev
			return "queued", nil
		}
	}
	return push
}

func (d *Dispatcher) loggedHandler(cmd string, h Handler) Handler {
	return func(ev Event) (any, error) {
		start := time.Now()
		d.logger.Debug("command received", "command", cmd, "args", len(ev.Args))

		result, err := h(ev)
		if err != nil {
			d.logger.Error("command failed", "command", cmd, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("command handled", "command", cmd, "duration", time.Since(start))
		return result, err
	}
}
