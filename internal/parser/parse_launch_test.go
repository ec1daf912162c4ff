package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelab/trajector/internal/ballistics"
)

func TestParseLaunch(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		input   []string
		check   func(t *testing.T, cfg ballistics.Config)
		wantErr bool
	}{
		{
			name: "numeric form",
			input: []string{
				"2",     // 0: height
				"45",    // 1: angle
				"50",    // 2: speed
				"0.046", // 3: mass
				"0.043", // 4: diameter
				"0.25",  // 5: dragCoefficient
				"1",     // 6: airResistance
			},
			check: func(t *testing.T, cfg ballistics.Config) {
				assert.Equal(t, 2.0, cfg.InitialHeight)
				assert.Equal(t, 45.0, cfg.Angle)
				assert.Equal(t, 50.0, cfg.Speed)
				assert.Equal(t, 0.046, cfg.Mass)
				assert.Equal(t, 0.043, cfg.Diameter)
				assert.Equal(t, 0.25, cfg.DragCoefficient)
				assert.True(t, cfg.AirResistance)
				assert.Empty(t, cfg.Preset)
			},
		},
		{
			name: "numeric form drag disabled",
			input: []string{
				"0", "30", "100", "17.6", "0.18", "0.47", "false",
			},
			check: func(t *testing.T, cfg ballistics.Config) {
				assert.False(t, cfg.AirResistance)
				assert.Equal(t, 17.6, cfg.Mass)
			},
		},
		{
			name: "preset form golfball",
			input: []string{
				"golfball", // 0: preset
				"0",        // 1: height
				"12",       // 2: angle
				"70",       // 3: speed
				"true",     // 4: airResistance
			},
			check: func(t *testing.T, cfg ballistics.Config) {
				assert.Equal(t, "golfball", cfg.Preset)
				assert.Equal(t, 0.046, cfg.Mass)
				assert.Equal(t, 0.043, cfg.Diameter)
				assert.Equal(t, 0.25, cfg.DragCoefficient)
				assert.Equal(t, 12.0, cfg.Angle)
				assert.Equal(t, 70.0, cfg.Speed)
				assert.True(t, cfg.AirResistance)
			},
		},
		{
			name: "preset form case-insensitive",
			input: []string{
				"Cannonball", "1", "45", "30", "1",
			},
			check: func(t *testing.T, cfg ballistics.Config) {
				assert.Equal(t, "cannonball", cfg.Preset)
				assert.Equal(t, 17.6, cfg.Mass)
			},
		},
		{
			name: "downward angle accepted",
			input: []string{
				"50", "-30", "20", "5", "0.37", "0.6", "1",
			},
			check: func(t *testing.T, cfg ballistics.Config) {
				assert.Equal(t, -30.0, cfg.Angle)
			},
		},
		{
			name:    "error: unknown preset",
			input:   []string{"anvil", "0", "45", "50", "1"},
			wantErr: true,
		},
		{
			name:    "error: wrong argument count",
			input:   []string{"2", "45", "50"},
			wantErr: true,
		},
		{
			name:    "error: bad height",
			input:   []string{"abc", "45", "50", "1", "0.1", "0.47", "1"},
			wantErr: true,
		},
		{
			name:    "error: NaN speed",
			input:   []string{"0", "45", "NaN", "1", "0.1", "0.47", "1"},
			wantErr: true,
		},
		{
			name:    "error: negative height",
			input:   []string{"-1", "45", "50", "1", "0.1", "0.47", "1"},
			wantErr: true,
		},
		{
			name:    "error: zero mass",
			input:   []string{"0", "45", "50", "0", "0.1", "0.47", "1"},
			wantErr: true,
		},
		{
			name:    "error: bad airResistance",
			input:   []string{"0", "45", "50", "1", "0.1", "0.47", "maybe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := p.ParseLaunch(append([]string{}, tt.input...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestParseAdjust(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		input   []string
		check   func(t *testing.T, mass, diameter, drag float64, air bool)
		wantErr bool
	}{
		{
			name:  "valid adjust",
			input: []string{"0.145", "0.074", "0.35", "1"},
			check: func(t *testing.T, mass, diameter, drag float64, air bool) {
				assert.Equal(t, 0.145, mass)
				assert.Equal(t, 0.074, diameter)
				assert.Equal(t, 0.35, drag)
				assert.True(t, air)
			},
		},
		{
			name:  "drag disabled",
			input: []string{"400", "2.2", "1.29", "false"},
			check: func(t *testing.T, mass, diameter, drag float64, air bool) {
				assert.False(t, air)
				assert.Equal(t, 400.0, mass)
			},
		},
		{
			name:    "error: too few arguments",
			input:   []string{"1", "0.1"},
			wantErr: true,
		},
		{
			name:    "error: zero diameter",
			input:   []string{"1", "0", "0.47", "1"},
			wantErr: true,
		},
		{
			name:    "error: negative drag",
			input:   []string{"1", "0.1", "-0.1", "1"},
			wantErr: true,
		},
		{
			name:    "error: bad mass",
			input:   []string{"heavy", "0.1", "0.47", "1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, err := p.ParseAdjust(append([]string{}, tt.input...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, adj.Mass, adj.Diameter, adj.DragCoefficient, adj.AirResistance)
		})
	}
}
