package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelab/trajector/pkg/core"
)

func TestPackRoundTrip(t *testing.T) {
	payload := StartSessionPayload{
		Session: &core.Session{Name: "Morning Qualifier", Tag: "Range"},
		Site:    &core.Site{Name: "North Range", Altitude: 820},
	}
	frame, err := Pack(TypeStartSession, payload)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, TypeStartSession, env.Type)

	var got StartSessionPayload
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "Morning Qualifier", got.Session.Name)
	assert.Equal(t, "North Range", got.Site.Name)
	assert.Equal(t, float64(820), got.Site.Altitude)
}

func TestPackNilPayload(t *testing.T) {
	frame, err := Pack(TypeEndSession, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"end_session","payload":null}`, string(frame))
}

func TestPackUnencodablePayload(t *testing.T) {
	_, err := Pack(TypeLaunch, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode launch payload")
}

func TestAckDecode(t *testing.T) {
	var ack AckMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ack","for":"start_session"}`), &ack))
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, TypeStartSession, ack.For)
}
