package layout

import (
	"math"
	"math/rand"
	"testing"

	"github.com/recera/kgview/pkg/kg"
)

func chain(ids ...string) kg.Snapshot {
	s := snapshot(ids...)
	for i := 1; i < len(ids); i++ {
		s.Edges = append(s.Edges, kg.Edge{Source: ids[i-1], Target: ids[i]})
	}
	return s
}

func TestSimulation_Defaults(t *testing.T) {
	o := DefaultOptions()
	if o.LinkDistance != 100 || o.ChargeStrength != -300 || o.CollideRadius != 30 {
		t.Errorf("unexpected force defaults %+v", o)
	}
	if o.Width != 800 || o.Height != 600 {
		t.Errorf("unexpected scene size %fx%f", o.Width, o.Height)
	}
	want := 1 - math.Pow(0.001, 1.0/300)
	if math.Abs(o.AlphaDecay-want) > 1e-12 {
		t.Errorf("AlphaDecay = %f, want %f", o.AlphaDecay, want)
	}
}

func TestSimulation_EmptyIsNoop(t *testing.T) {
	sim := NewSimulation(nil)
	sim.Load(kg.Snapshot{})
	for i := 0; i < 10; i++ {
		if sim.Step() {
			t.Fatal("Step on an empty model should not apply forces")
		}
	}
	if sim.Model().Len() != 0 {
		t.Error("empty model gained bodies")
	}
}

func TestSimulation_Cooling(t *testing.T) {
	sim := NewSimulation(nil)
	sim.Load(chain("a", "b", "c"))

	if sim.Alpha() != 1 {
		t.Fatalf("alpha after load = %f, want 1", sim.Alpha())
	}
	for i := 0; i < 290; i++ {
		sim.Step()
	}
	if sim.Settled() {
		t.Errorf("settled too early, alpha = %f", sim.Alpha())
	}
	for i := 0; i < 20; i++ {
		sim.Step()
	}
	if !sim.Settled() {
		t.Errorf("should be settled after 310 ticks, alpha = %f", sim.Alpha())
	}

	before := sim.Model().Positions()
	if sim.Step() {
		t.Error("settled simulation should skip forces")
	}
	after := sim.Model().Positions()
	for i := range before {
		if before[i].X != after[i].X || before[i].Y != after[i].Y {
			t.Errorf("body %s moved while settled", before[i].ID)
		}
	}
}

func TestSimulation_ReheatAndCool(t *testing.T) {
	sim := NewSimulation(nil)
	sim.Load(chain("a", "b"))
	for !sim.Settled() {
		sim.Step()
	}

	sim.Reheat(0.3)
	if sim.Alpha() != 0.3 || sim.AlphaTarget() != 0.3 {
		t.Errorf("Reheat: alpha=%f target=%f", sim.Alpha(), sim.AlphaTarget())
	}
	for i := 0; i < 500; i++ {
		sim.Step()
	}
	if math.Abs(sim.Alpha()-0.3) > 1e-3 {
		t.Errorf("alpha should hold near the target while reheated, got %f", sim.Alpha())
	}

	sim.Cool()
	if sim.AlphaTarget() != 0 {
		t.Error("Cool should reset the target")
	}

	sim.Restart()
	if sim.Alpha() != 1 {
		t.Error("Restart should set alpha to 1")
	}
	// Reheat never lowers alpha.
	sim.Reheat(0.3)
	if sim.Alpha() != 1 {
		t.Errorf("Reheat lowered alpha to %f", sim.Alpha())
	}
}

func TestSimulation_DragPinsAndRelease(t *testing.T) {
	sim := NewSimulation(nil)
	sim.Load(chain("a", "b", "c"))
	m := sim.Model()

	sim.Reheat(0.3)
	m.Pin("a", 500, 300)
	for i := 0; i < 30; i++ {
		sim.Step()
		a, _ := m.Body("a")
		if a.X != 500 || a.Y != 300 {
			t.Fatalf("tick %d: pinned body at (%f, %f)", i, a.X, a.Y)
		}
	}

	m.Unpin("a")
	sim.Cool()
	sim.Step()
	a, _ := m.Body("a")
	if a.X == 500 && a.Y == 300 {
		t.Error("released body should resume free integration")
	}
	if a.VX == 0 && a.VY == 0 {
		t.Error("released body velocity should no longer be forced to zero")
	}
}

func TestSimulation_ReloadDiscardsLayout(t *testing.T) {
	sim := NewSimulation(nil)
	sim.Load(chain("a", "b", "c", "d"))
	for i := 0; i < 200; i++ {
		sim.Step()
	}

	sim.Load(chain("a", "x"))
	if sim.Alpha() != 1 {
		t.Errorf("alpha after reload = %f", sim.Alpha())
	}
	cx, cy := sim.Model().Center()
	for _, b := range sim.Model().Positions() {
		if math.Abs(b.X-cx) > 10 || math.Abs(b.Y-cy) > 10 {
			t.Errorf("body %s not re-seeded near center: (%f, %f)", b.ID, b.X, b.Y)
		}
	}
}

func TestSimulation_SpreadsNodes(t *testing.T) {
	sim := NewSimulation(nil)
	sim.Load(chain("a", "b", "c", "d", "e"))
	for i := 0; i < 300; i++ {
		sim.Step()
	}
	ps := sim.Model().Positions()
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			d := math.Hypot(ps[i].X-ps[j].X, ps[i].Y-ps[j].Y)
			if d < 30 {
				t.Errorf("%s and %s overlap at distance %f", ps[i].ID, ps[j].ID, d)
			}
		}
	}
}

func randomModel(n int, seed int64) *Model {
	r := rand.New(rand.NewSource(seed))
	ids := make([]string, n)
	for i := range ids {
		ids[i] = string(rune('A'+i%26)) + string(rune('a'+i/26%26)) + string(rune('0'+i/676))
	}
	m := NewModel(nil)
	m.Initialize(snapshot(ids...))
	for i := range m.bodies {
		m.bodies[i].X = r.Float64() * 1000
		m.bodies[i].Y = r.Float64() * 1000
	}
	return m
}

func velocities(m *Model) [][2]float64 {
	out := make([][2]float64, len(m.bodies))
	for i, b := range m.bodies {
		out[i] = [2]float64{b.VX, b.VY}
	}
	return out
}

func TestChargeForce_ExactMatchesPairwise(t *testing.T) {
	m := randomModel(60, 7)
	pos := m.Positions()

	f := &ChargeForce{Strength: -300, Exact: true, DistanceMin: 1, DistanceMax: math.Inf(1)}
	f.Apply(m, 1)
	got := velocities(m)

	for i := range pos {
		var vx, vy float64
		for j := range pos {
			if i == j {
				continue
			}
			x, y := pos[j].X-pos[i].X, pos[j].Y-pos[i].Y
			l := x*x + y*y
			if l < 1 {
				l = math.Sqrt(l)
			}
			vx += x * -300 / l
			vy += y * -300 / l
		}
		if math.Abs(got[i][0]-vx) > 1e-6 || math.Abs(got[i][1]-vy) > 1e-6 {
			t.Errorf("body %d: got (%f, %f), want (%f, %f)", i, got[i][0], got[i][1], vx, vy)
		}
	}
}

func TestChargeForce_BarnesHutWithinTolerance(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		exact := randomModel(300, seed)
		approx := randomModel(300, seed)

		(&ChargeForce{Strength: -300, Exact: true, DistanceMin: 1}).Apply(exact, 1)
		(&ChargeForce{Strength: -300, Theta: 0.9, DistanceMin: 1}).Apply(approx, 1)

		ve, va := velocities(exact), velocities(approx)
		var errSum, normSum float64
		for i := range ve {
			errSum += math.Hypot(va[i][0]-ve[i][0], va[i][1]-ve[i][1])
			normSum += math.Hypot(ve[i][0], ve[i][1])
		}
		if rel := errSum / normSum; rel > 0.15 {
			t.Errorf("seed %d: relative error %.3f exceeds 15%%", seed, rel)
		}
	}
}

func TestChargeForce_CoincidentBodiesSeparate(t *testing.T) {
	m := NewModel(nil)
	m.Initialize(snapshot("a", "b"))
	for i := range m.bodies {
		m.bodies[i].X, m.bodies[i].Y = 100, 100
	}

	(&ChargeForce{Strength: -300, Theta: 0.9, DistanceMin: 1}).Apply(m, 1)

	a, _ := m.Body("a")
	b, _ := m.Body("b")
	if a.VX == 0 && a.VY == 0 {
		t.Error("coincident body a received no push")
	}
	if b.VX == 0 && b.VY == 0 {
		t.Error("coincident body b received no push")
	}
	for _, v := range []float64{a.VX, a.VY, b.VX, b.VY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite velocity %f", v)
		}
	}
}

func TestCollideForce_SplitsOverlap(t *testing.T) {
	m := NewModel(nil)
	m.Initialize(snapshot("a", "b"))
	m.bodies[0].X, m.bodies[0].Y = 0, 0
	m.bodies[1].X, m.bodies[1].Y = 10, 0

	(&CollideForce{Radius: 30, Strength: 1, Iterations: 1}).Apply(m, 1)

	a, _ := m.Body("a")
	b, _ := m.Body("b")
	if math.Abs(a.VX+25) > 1e-9 || math.Abs(b.VX-25) > 1e-9 {
		t.Errorf("expected symmetric push of 25, got a=%f b=%f", a.VX, b.VX)
	}
	// Only the jiggle used for the zero y offset leaks into VY.
	if math.Abs(a.VY) > 1e-5 || math.Abs(b.VY) > 1e-5 {
		t.Errorf("unexpected vertical push a=%f b=%f", a.VY, b.VY)
	}
}

func TestCollideForce_IgnoresSeparatedBodies(t *testing.T) {
	m := NewModel(nil)
	m.Initialize(snapshot("a", "b"))
	m.bodies[0].X = 0
	m.bodies[1].X = 61

	(&CollideForce{Radius: 30, Strength: 1}).Apply(m, 1)

	for _, b := range m.Positions() {
		if b.VX != 0 || b.VY != 0 {
			t.Errorf("body %s pushed although disks do not overlap", b.ID)
		}
	}
}

func TestLinkForce_PullsTowardDistance(t *testing.T) {
	m := NewModel(nil)
	m.Initialize(chain("a", "b"))
	m.bodies[0].X, m.bodies[0].Y = 0, 0
	m.bodies[1].X, m.bodies[1].Y = 300, 0

	f := &LinkForce{Distance: 100}
	f.Init(m)
	f.Apply(m, 1)

	a, _ := m.Body("a")
	b, _ := m.Body("b")
	// strength 1, bias 0.5: (300-100)/300 * 300 = 200 split evenly
	if math.Abs(a.VX-100) > 1e-9 || math.Abs(b.VX+100) > 1e-9 {
		t.Errorf("unexpected link velocities a=%f b=%f", a.VX, b.VX)
	}
}

func TestCenterForce_MovesCentroid(t *testing.T) {
	m := NewModel(&Options{Width: 200, Height: 100})
	m.Initialize(snapshot("a", "b"))
	m.bodies[0].X, m.bodies[0].Y = 0, 0
	m.bodies[1].X, m.bodies[1].Y = 20, 10

	(&CenterForce{Strength: 1}).Apply(m, 1)

	var sx, sy float64
	for _, b := range m.Positions() {
		sx += b.X
		sy += b.Y
	}
	if math.Abs(sx/2-100) > 1e-9 || math.Abs(sy/2-50) > 1e-9 {
		t.Errorf("centroid at (%f, %f)", sx/2, sy/2)
	}
}
