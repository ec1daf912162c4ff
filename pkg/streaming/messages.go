// Package streaming defines the wire protocol between the simulator and
// the trajector web server.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/rangelab/trajector/pkg/core"
)

// Message types the web server understands.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeLaunch       = "launch"
	TypeSampleState  = "sample_state"
	TypeLandingEvent = "landing_event"
	TypeFlightPath   = "flight_path"
	TypeProbeReading = "probe_reading"
	TypePerformance  = "performance"
)

// Envelope is the outer frame around every message on the socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage confirms receipt of a session boundary. Type is always
// "ack"; For names the message type being confirmed.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// StartSessionPayload opens a recording session on the server.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
	Site    *core.Site    `json:"site"`
}

// Pack encodes a payload inside an Envelope of the given type.
func Pack(msgType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: body})
}
