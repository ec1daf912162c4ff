package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/rangelab/trajector/pkg/streaming"
)

const (
	outboxSize = 10_000
	ackBuffer  = 16
	maxRedials = 10
	maxBackoff = 30 * time.Second
	writeWait  = 10 * time.Second
	ackTimeout = 10 * time.Second
)

// link owns one WebSocket connection and its pump goroutines. Every frame
// leaves through a single writer; acks come back on a small queue that
// sendAndWait drains.
type link struct {
	mu         sync.Mutex
	sock       *gws.Conn
	startFrame []byte // replayed after a reconnect so the server rebinds the session
	closed     bool

	outbox chan []byte
	acks   chan streaming.AckMessage
	stop   chan struct{} // closed on shutdown

	cfg    Config
	logger *slog.Logger
}

func newLink(logger *slog.Logger) *link {
	return &link{
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackBuffer),
		stop:   make(chan struct{}),
		logger: logger,
	}
}

// dial opens the first socket and brings the pumps up.
func (l *link) dial(cfg Config) error {
	l.cfg = cfg

	sock, err := l.openSocket()
	if err != nil {
		return err
	}
	l.adopt(sock)
	go l.pumpOut()
	go l.pumpAcks()
	return nil
}

// openSocket dials the server with the shared secret in the query string.
func (l *link) openSocket() (*gws.Conn, error) {
	u, err := url.Parse(l.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("bad websocket URL %q: %w", l.cfg.URL, err)
	}
	q := u.Query()
	q.Set("secret", l.cfg.Secret)
	u.RawQuery = q.Encode()

	sock, _, err := gws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return sock, nil
}

func (l *link) adopt(sock *gws.Conn) {
	l.mu.Lock()
	l.sock = sock
	l.mu.Unlock()
}

func (l *link) current() *gws.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sock
}

// setStartFrame caches the session-opening frame for reconnect replay.
// Pass nil once the session ends.
func (l *link) setStartFrame(frame []byte) {
	l.mu.Lock()
	l.startFrame = frame
	l.mu.Unlock()
}

func writeFrame(sock *gws.Conn, frame []byte) error {
	if err := sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return sock.WriteMessage(gws.TextMessage, frame)
}

// pumpOut is the single writer. It exits on shutdown or on a write error,
// after handing the socket to redial.
func (l *link) pumpOut() {
	for {
		select {
		case <-l.stop:
			return
		case frame := <-l.outbox:
			sock := l.current()
			if sock == nil {
				continue
			}
			if err := writeFrame(sock, frame); err != nil {
				l.logger.Warn("WebSocket write error", "error", err)
				go l.redial()
				return
			}
		}
	}
}

// pumpAcks reads server frames and queues the acks.
func (l *link) pumpAcks() {
	for {
		sock := l.current()
		if sock == nil {
			return
		}
		_, raw, err := sock.ReadMessage()
		if err != nil {
			select {
			case <-l.stop:
				return
			default:
			}
			l.logger.Warn("WebSocket read error", "error", err)
			go l.redial()
			return
		}
		l.routeAck(raw)
	}
}

func (l *link) routeAck(raw []byte) {
	var ack streaming.AckMessage
	if err := json.Unmarshal(raw, &ack); err != nil {
		l.logger.Debug("Unparseable server frame", "raw", string(raw))
		return
	}
	if ack.Type != "ack" {
		return
	}
	select {
	case l.acks <- ack:
	default:
		l.logger.Debug("Ack queue full, dropping", "for", ack.For)
	}
}

// redial re-establishes the socket with exponential backoff, replays the
// cached session-opening frame, and restarts the pumps. After maxRedials
// failures queued frames sit in the outbox until close.
func (l *link) redial() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if l.sock != nil {
		_ = l.sock.Close()
		l.sock = nil
	}
	l.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-l.stop:
			return
		default:
		}

		l.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)

		sock, err := l.openSocket()
		if err != nil {
			l.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			continue
		}

		if err := l.rebind(sock); err != nil {
			l.logger.Warn("Failed to replay session start after reconnect", "error", err)
			_ = sock.Close()
			continue
		}

		l.adopt(sock)
		l.logger.Info("WebSocket reconnected", "attempt", attempt)
		go l.pumpOut()
		go l.pumpAcks()
		return
	}

	l.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxRedials)
}

// rebind replays the cached start frame on a fresh socket so the server
// knows which session the following frames belong to.
func (l *link) rebind(sock *gws.Conn) error {
	l.mu.Lock()
	frame := l.startFrame
	l.mu.Unlock()

	if frame == nil {
		return nil
	}
	return writeFrame(sock, frame)
}

// send queues one frame without blocking; a full outbox drops the frame.
func (l *link) send(frame []byte) {
	select {
	case l.outbox <- frame:
	default:
		l.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait queues the frame and blocks until the server acks that
// message type, the timeout passes, or the link closes.
func (l *link) sendAndWait(frame []byte, ackFor string, timeout time.Duration) error {
	l.send(frame)

	wait := time.NewTimer(timeout)
	defer wait.Stop()

	for {
		select {
		case ack := <-l.acks:
			if ack.For == ackFor {
				return nil
			}
			// ack for an earlier frame, keep draining
		case <-wait.C:
			return fmt.Errorf("no ack for %q within %s", ackFor, timeout)
		case <-l.stop:
			return fmt.Errorf("link closed before ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops the pumps. Idempotent.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stop)
	sock := l.sock
	l.sock = nil
	l.mu.Unlock()

	if sock == nil {
		return nil
	}
	_ = sock.WriteMessage(
		gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
	)
	return sock.Close()
}
