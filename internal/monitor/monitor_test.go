package monitor

import (
	"testing"
	"time"

	"github.com/rangelab/trajector/internal/ballistics"
	"github.com/rangelab/trajector/internal/cache"
	"github.com/rangelab/trajector/internal/channel"
	"github.com/rangelab/trajector/internal/dispatcher"
	"github.com/rangelab/trajector/internal/engine"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/session"
	"github.com/rangelab/trajector/internal/worker"
	"github.com/rangelab/trajector/pkg/core"
)

type testLogger struct{}

func (testLogger) Debug(msg string, keysAndValues ...any) {}
func (testLogger) Info(msg string, keysAndValues ...any)  {}
func (testLogger) Error(msg string, keysAndValues ...any) {}

// stubBackend satisfies storage.Backend without doing anything.
type stubBackend struct {
	performances int
}

func (b *stubBackend) Init() error                                        { return nil }
func (b *stubBackend) Close() error                                       { return nil }
func (b *stubBackend) StartSession(s *core.Session, st *core.Site) error  { return nil }
func (b *stubBackend) EndSession() error                                  { return nil }
func (b *stubBackend) AddLaunch(l *core.Launch) error                     { return nil }
func (b *stubBackend) RecordSample(s *core.SampleState) error             { return nil }
func (b *stubBackend) RecordLanding(e *core.LandingEvent) error           { return nil }
func (b *stubBackend) RecordFlightPath(p *core.FlightPath) error          { return nil }
func (b *stubBackend) RecordProbe(r *core.ProbeReading) error             { return nil }
func (b *stubBackend) RecordPerformance(p *core.Performance) error {
	b.performances++
	return nil
}

func newTestService(t *testing.T) (*Service, *engine.Engine, channel.Channel[core.LandingEvent]) {
	t.Helper()

	eng := engine.New(engine.DefaultSettings(), ballistics.Config{
		InitialHeight: 0, Angle: 80, Speed: 18,
		Mass: 17.6, Diameter: 0.18, DragCoefficient: 0.47,
	})
	backend := &stubBackend{}
	landings := channel.New[core.LandingEvent](8)

	d, err := dispatcher.New(testLogger{})
	if err != nil {
		t.Fatalf("dispatcher setup failed: %v", err)
	}

	manager := worker.New(worker.Dependencies{
		Engine:         eng,
		SessionContext: session.NewContext(),
		LaunchCache:    cache.NewLaunchCache(),
		LogManager:     logging.NewManager(),
	}, backend)

	svc := New(Dependencies{
		Engine:         eng,
		SessionContext: session.NewContext(),
		WorkerManager:  manager,
		Dispatcher:     d,
		Backend:        backend,
		LogManager:     logging.NewManager(),
		Landings:       landings,
		StatusDir:      t.TempDir(),
	})
	return svc, eng, landings
}

func TestGetProgramStatus_Census(t *testing.T) {
	svc, eng, landings := newTestService(t)

	cfg := eng.Defaults()
	for i := 0; i < 2; i++ {
		if _, err := eng.Launch(cfg); err != nil {
			t.Fatalf("launch %d failed: %v", i, err)
		}
	}
	landings.Send(core.LandingEvent{TrajectoryID: 0})

	output, perf := svc.GetProgramStatus(true, true, true)

	if perf.Trajectories != 2 {
		t.Errorf("expected 2 trajectories, got %d", perf.Trajectories)
	}
	if perf.Airborne != 2 {
		t.Errorf("expected 2 airborne, got %d", perf.Airborne)
	}
	if perf.Landed != 0 {
		t.Errorf("expected 0 landed, got %d", perf.Landed)
	}
	if perf.LandingChannelDepth != 1 {
		t.Errorf("expected landing channel depth 1, got %d", perf.LandingChannelDepth)
	}
	if perf.Time.IsZero() {
		t.Error("expected snapshot timestamp to be set")
	}
	if len(output) != 3 {
		t.Errorf("expected 3 JSON blocks, got %d", len(output))
	}
}

func TestGetProgramStatus_NoOutputBlocks(t *testing.T) {
	svc, _, _ := newTestService(t)

	output, perf := svc.GetProgramStatus(false, false, false)
	if len(output) != 0 {
		t.Errorf("expected no output blocks, got %d", len(output))
	}
	if perf.WriteQueues != (core.WriteQueueLengths{}) {
		t.Errorf("expected zero write queues for a direct-write backend, got %+v", perf.WriteQueues)
	}
}

func TestStartStop(t *testing.T) {
	svc, _, _ := newTestService(t)

	svc.Start()
	if !svc.Running() {
		t.Fatal("expected monitor to be running after start")
	}

	// A second start on a running monitor is a no-op
	svc.Start()

	svc.Stop()

	deadline := time.After(3 * time.Second)
	for svc.Running() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for monitor to stop")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
