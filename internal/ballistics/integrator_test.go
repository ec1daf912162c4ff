package ballistics

import (
	"math"
	"testing"
)

func TestStepMatchesClosedFormWithoutDrag(t *testing.T) {
	// With zero drag the scheme is exact for constant acceleration, so the
	// composed steps must reproduce x(t) = vx·t, y(t) = y0 + vy·t - g·t²/2.
	in := Integrator{Gravity: 9.81}
	cfg := Config{InitialHeight: 2, Angle: 60, Speed: 25, Mass: 1, Diameter: 0.1}
	st := NewState(cfg)
	vx0, vy0 := st.VX, st.VY

	dt := 0.025
	for k := 1; k <= 80; k++ {
		if _, landed := in.Step(st, dt, 0); landed {
			t.Fatalf("landed unexpectedly at step %d", k)
		}
		tt := float64(k) * dt
		wantX := vx0 * tt
		wantY := 2 + vy0*tt - 0.5*9.81*tt*tt
		if math.Abs(st.X-wantX) > 1e-9 {
			t.Fatalf("step %d: X = %v, want %v", k, st.X, wantX)
		}
		if math.Abs(st.Y-wantY) > 1e-9 {
			t.Fatalf("step %d: Y = %v, want %v", k, st.Y, wantY)
		}
		if math.Abs(st.VY-(vy0-9.81*tt)) > 1e-9 {
			t.Fatalf("step %d: VY = %v, want %v", k, st.VY, vy0-9.81*tt)
		}
	}
}

func TestStepDragUsesPreviousVelocity(t *testing.T) {
	// One large step so previous-step and end-of-step velocities differ a
	// lot; the committed state must match the stated order of operations
	// with drag taken from the velocity BEFORE the step.
	in := Integrator{Gravity: 9.81}
	st := &State{
		Y: 100, VX: 30, VY: 10,
		Mass: 2, Diameter: 0.2, DragCoefficient: 0.5, AirResistance: true,
	}
	st.Speed = math.Hypot(st.VX, st.VY)

	density := 1.2
	dt := 0.5

	area := math.Pi * 0.2 * 0.2 / 4
	factor := 0.5 * density * area * 0.5 * st.Speed
	ax := -factor * st.VX / st.Mass
	ay := -9.81 - factor*st.VY/st.Mass
	wantX := st.X + st.VX*dt + 0.5*ax*dt*dt
	wantY := st.Y + st.VY*dt + 0.5*ay*dt*dt
	wantVX := st.VX + ax*dt
	wantVY := st.VY + ay*dt

	if _, landed := in.Step(st, dt, density); landed {
		t.Fatal("should not land from 100 m in one step")
	}
	if math.Abs(st.X-wantX) > 1e-12 || math.Abs(st.Y-wantY) > 1e-12 {
		t.Errorf("position = (%v, %v), want (%v, %v)", st.X, st.Y, wantX, wantY)
	}
	if math.Abs(st.VX-wantVX) > 1e-12 || math.Abs(st.VY-wantVY) > 1e-12 {
		t.Errorf("velocity = (%v, %v), want (%v, %v)", st.VX, st.VY, wantVX, wantVY)
	}
	if st.AX != ax || st.AY != ay {
		t.Errorf("acceleration = (%v, %v), want (%v, %v)", st.AX, st.AY, ax, ay)
	}
	if st.Time != dt {
		t.Errorf("Time = %v, want %v", st.Time, dt)
	}
}

func TestStepZeroDensityMeansZeroDrag(t *testing.T) {
	in := Integrator{Gravity: 9.81}
	withFlag := NewState(Config{Angle: 45, Speed: 20, Mass: 1, Diameter: 5, DragCoefficient: 3, AirResistance: true})
	plain := NewState(Config{Angle: 45, Speed: 20, Mass: 1, Diameter: 5, DragCoefficient: 3})

	// Density 0 must behave identically to no drag at all, whatever the
	// body parameters say.
	for i := 0; i < 20; i++ {
		in.Step(withFlag, 0.025, 0)
		in.Step(plain, 0.025, 0)
	}
	if withFlag.X != plain.X || withFlag.Y != plain.Y || withFlag.VX != plain.VX || withFlag.VY != plain.VY {
		t.Errorf("zero density diverged: (%v,%v) vs (%v,%v)", withFlag.X, withFlag.Y, plain.X, plain.Y)
	}
	if withFlag.AX != 0 {
		t.Errorf("AX = %v, want 0 with zero density", withFlag.AX)
	}
}

func TestStepDragShortensFlight(t *testing.T) {
	in := Integrator{Gravity: 9.81}
	cfg := Config{Angle: 45, Speed: 30, Mass: 0.145, Diameter: 0.074, DragCoefficient: 0.35}
	dragged := NewState(cfg)
	ideal := NewState(cfg)

	density := 1.225
	var draggedImpact, idealImpact Impact
	for i := 0; i < 4000 && !dragged.ReachedGround; i++ {
		if imp, landed := in.Step(dragged, 0.025, density); landed {
			draggedImpact = imp
		}
	}
	for i := 0; i < 4000 && !ideal.ReachedGround; i++ {
		if imp, landed := in.Step(ideal, 0.025, 0); landed {
			idealImpact = imp
		}
	}

	if !dragged.ReachedGround || !ideal.ReachedGround {
		t.Fatal("both flights should land")
	}
	if draggedImpact.X >= idealImpact.X {
		t.Errorf("dragged range %v should be shorter than ideal %v", draggedImpact.X, idealImpact.X)
	}
	if draggedImpact.Time >= idealImpact.Time {
		t.Errorf("dragged flight time %v should be shorter than ideal %v", draggedImpact.Time, idealImpact.Time)
	}
}

func TestStepResolvesGroundCrossing(t *testing.T) {
	// Horizontal launch from 1 m: fall time sqrt(2·y0/g), range vx·T.
	in := Integrator{Gravity: 9.81}
	st := NewState(Config{InitialHeight: 1, Angle: 0, Speed: 5, Mass: 1, Diameter: 0.1})

	var impact Impact
	landed := false
	steps := 0
	for !landed {
		impact, landed = in.Step(st, 0.1, 0)
		steps++
		if steps > 100 {
			t.Fatal("never landed")
		}
	}

	wantT := math.Sqrt(2 * 1 / 9.81)
	if math.Abs(impact.Time-wantT) > 1e-9 {
		t.Errorf("impact time = %v, want %v", impact.Time, wantT)
	}
	if math.Abs(impact.X-5*wantT) > 1e-9 {
		t.Errorf("impact X = %v, want %v", impact.X, 5*wantT)
	}
	if st.Y != 0 {
		t.Errorf("Y = %v, want exactly 0", st.Y)
	}
	if st.VX != 0 || st.VY != 0 || st.Speed != 0 {
		t.Errorf("velocity not zeroed: VX=%v VY=%v Speed=%v", st.VX, st.VY, st.Speed)
	}
	if !st.ReachedGround {
		t.Error("ReachedGround not set")
	}
	if st.Time != impact.Time {
		t.Errorf("state time %v != impact time %v", st.Time, impact.Time)
	}
}

func TestStepAfterLandingIsNoOp(t *testing.T) {
	in := Integrator{Gravity: 9.81}
	st := NewState(Config{InitialHeight: 0.01, Angle: -90, Speed: 10, Mass: 1, Diameter: 0.1})

	_, landed := in.Step(st, 0.1, 0)
	if !landed {
		t.Fatal("expected immediate landing")
	}
	before := *st
	if _, landedAgain := in.Step(st, 0.1, 0); landedAgain {
		t.Error("landed reported twice")
	}
	if *st != before {
		t.Error("state mutated after landing")
	}
}

func TestStepLaunchAtRestLandsAtOrigin(t *testing.T) {
	in := Integrator{Gravity: 9.81}
	st := NewState(Config{Mass: 1, Diameter: 0.1})

	impact, landed := in.Step(st, 0.025, 0)
	if !landed {
		t.Fatal("resting launch should ground on the first step")
	}
	if impact.X != 0 || impact.Time != 0 {
		t.Errorf("impact = %+v, want origin at time 0", impact)
	}
}

func TestTimeToGround(t *testing.T) {
	// Free fall from 1 m: τ = sqrt(2·y/g).
	tau := timeToGround(1, 0, -9.81)
	if want := math.Sqrt(2 / 9.81); math.Abs(tau-want) > 1e-12 {
		t.Errorf("timeToGround(1,0,-9.81) = %v, want %v", tau, want)
	}

	// Upward velocity at ground level: the nearer-zero root is the full
	// arc back down, 2·vy/g.
	tau = timeToGround(0, 3, -9.81)
	if want := 2 * 3 / 9.81; math.Abs(tau-want) > 1e-12 {
		t.Errorf("timeToGround(0,3,-9.81) = %v, want %v", tau, want)
	}

	// Negative discriminant clamps to zero.
	if tau = timeToGround(1, -1, 5); tau != 0 {
		t.Errorf("negative discriminant: τ = %v, want 0", tau)
	}

	// Degenerate zero acceleration falls linearly.
	if tau = timeToGround(1, -2, 0); tau != 0.5 {
		t.Errorf("linear fall: τ = %v, want 0.5", tau)
	}
	if tau = timeToGround(1, 0, 0); tau != 0 {
		t.Errorf("hovering: τ = %v, want 0", tau)
	}
}

func TestStepApproachesTerminalVelocity(t *testing.T) {
	// Long fall with drag: |vy| stays below the analytic terminal speed
	// sqrt(2·m·g / (ρ·A·Cd)) and closes in on it.
	in := Integrator{Gravity: 9.81}
	st := &State{Y: 1e9, Mass: 0.046, Diameter: 0.043, DragCoefficient: 0.25, AirResistance: true}

	density := 1.225
	area := math.Pi * 0.043 * 0.043 / 4
	terminal := math.Sqrt(2 * 0.046 * 9.81 / (density * area * 0.25))

	for i := 0; i < 20000; i++ {
		in.Step(st, 0.025, density)
		if -st.VY > terminal+1e-6 {
			t.Fatalf("fall speed %v exceeded terminal %v at step %d", -st.VY, terminal, i)
		}
	}
	if -st.VY < 0.99*terminal {
		t.Errorf("fall speed %v should approach terminal %v", -st.VY, terminal)
	}
}
