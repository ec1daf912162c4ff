package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelTableNames(t *testing.T) {
	want := map[string]interface{ TableName() string }{
		"service_infos":  &ServiceInfo{},
		"sites":          &Site{},
		"sessions":       &Session{},
		"launches":       &Launch{},
		"sample_states":  &SampleState{},
		"landing_events": &LandingEvent{},
		"probe_readings": &ProbeReading{},
		"performances":   &Performance{},
	}

	for name, m := range want {
		assert.Equal(t, name, m.TableName())
	}
}
