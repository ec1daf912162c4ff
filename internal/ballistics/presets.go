package ballistics

import "strings"

// Projectile is a named benchmark body from the preset catalog.
type Projectile struct {
	Name            string
	Mass            float64 // kg
	Diameter        float64 // m
	DragCoefficient float64
}

// presets is the benchmark catalog. Values are the usual textbook figures
// for each body; the cannonball doubles as the launch default.
var presets = []Projectile{
	{Name: "cannonball", Mass: 17.60, Diameter: 0.18, DragCoefficient: 0.47},
	{Name: "tankshell", Mass: 42, Diameter: 0.15, DragCoefficient: 0.06},
	{Name: "pumpkin", Mass: 5, Diameter: 0.37, DragCoefficient: 0.6},
	{Name: "baseball", Mass: 0.145, Diameter: 0.074, DragCoefficient: 0.35},
	{Name: "football", Mass: 0.41, Diameter: 0.17, DragCoefficient: 0.05},
	{Name: "golfball", Mass: 0.046, Diameter: 0.043, DragCoefficient: 0.25},
	{Name: "human", Mass: 70, Diameter: 0.5, DragCoefficient: 1.0},
	{Name: "piano", Mass: 400, Diameter: 2.2, DragCoefficient: 1.29},
	{Name: "car", Mass: 2000, Diameter: 2.5, DragCoefficient: 0.55},
}

// Preset looks up a catalog body by name, case-insensitive.
func Preset(name string) (Projectile, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range presets {
		if p.Name == key {
			return p, true
		}
	}
	return Projectile{}, false
}

// PresetNames returns the catalog names in declaration order.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// Apply copies the body's physical parameters onto a launch configuration
// and records the preset name in it.
func (p Projectile) Apply(cfg Config) Config {
	cfg.Mass = p.Mass
	cfg.Diameter = p.Diameter
	cfg.DragCoefficient = p.DragCoefficient
	cfg.Preset = p.Name
	return cfg
}
