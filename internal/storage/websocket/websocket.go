package websocket

import (
	"log/slog"

	"github.com/rangelab/trajector/pkg/core"
	"github.com/rangelab/trajector/pkg/streaming"
)

// Config points the backend at the trajector web server.
type Config struct {
	URL    string
	Secret string
}

// Backend streams flight data to the web server as it is produced.
// Nothing is kept on disk, so there is no recording to upload afterwards
// and storage.Uploadable stays unimplemented.
type Backend struct {
	conn *link
	cfg  Config
}

// New returns a backend that will stream to the server named in cfg.
func New(cfg Config) *Backend {
	return &Backend{
		conn: newLink(slog.Default()),
		cfg:  cfg,
	}
}

// Init opens the socket and starts the pumps.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg)
}

// Close shuts the connection down.
func (b *Backend) Close() error {
	return b.conn.close()
}

// push queues an envelope on the write loop without waiting for the server.
func (b *Backend) push(msgType string, payload any) error {
	frame, err := streaming.Pack(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(frame)
	return nil
}

// pushAcked sends an envelope and blocks until the server confirms it.
func (b *Backend) pushAcked(msgType string, payload any) error {
	frame, err := streaming.Pack(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(frame, msgType, ackTimeout)
}

// StartSession announces the session and site and waits for the server
// ack. The frame is cached so a reconnect can replay it.
func (b *Backend) StartSession(session *core.Session, site *core.Site) error {
	frame, err := streaming.Pack(streaming.TypeStartSession, streaming.StartSessionPayload{Session: session, Site: site})
	if err != nil {
		return err
	}

	b.conn.setStartFrame(frame)
	return b.conn.sendAndWait(frame, streaming.TypeStartSession, ackTimeout)
}

// EndSession closes the session on the server. The replay frame goes
// away even when the ack never arrives.
func (b *Backend) EndSession() error {
	err := b.pushAcked(streaming.TypeEndSession, nil)
	b.conn.setStartFrame(nil)
	return err
}

func (b *Backend) AddLaunch(l *core.Launch) error {
	return b.push(streaming.TypeLaunch, l)
}

func (b *Backend) RecordSample(s *core.SampleState) error {
	return b.push(streaming.TypeSampleState, s)
}

func (b *Backend) RecordLanding(e *core.LandingEvent) error {
	return b.push(streaming.TypeLandingEvent, e)
}

func (b *Backend) RecordFlightPath(p *core.FlightPath) error {
	return b.push(streaming.TypeFlightPath, p)
}

func (b *Backend) RecordProbe(r *core.ProbeReading) error {
	return b.push(streaming.TypeProbeReading, r)
}

func (b *Backend) RecordPerformance(p *core.Performance) error {
	return b.push(streaming.TypePerformance, p)
}
