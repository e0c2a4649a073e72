package layout

import "github.com/recera/kgview/pkg/kg"

// Simulation advances a Model with link, charge, centering and collision
// forces under a cooling alpha.
type Simulation struct {
	opts   Options
	model  *Model
	forces []Force

	alpha       float64
	alphaTarget float64
	ticks       uint64
}

// NewSimulation creates a simulation over an empty model.
func NewSimulation(opts *Options) *Simulation {
	o := opts.withDefaults()
	s := &Simulation{
		opts:  o,
		model: NewModel(&o),
		alpha: 1,
	}
	s.forces = []Force{
		&LinkForce{Distance: o.LinkDistance, Strength: o.LinkStrength},
		&ChargeForce{
			Strength:    o.ChargeStrength,
			Theta:       o.Theta,
			Exact:       o.Exact,
			DistanceMin: o.DistanceMin,
			DistanceMax: o.DistanceMax,
		},
		&CenterForce{Strength: o.CenterStrength},
		&CollideForce{Radius: o.CollideRadius, Strength: o.CollideStrength, Iterations: o.CollideIterations},
	}
	return s
}

// Options returns the effective options.
func (s *Simulation) Options() Options { return s.opts }

// Model returns the spatial model driven by the simulation.
func (s *Simulation) Model() *Model { return s.model }

// Load re-initializes the model from a snapshot and restarts the layout.
func (s *Simulation) Load(snap kg.Snapshot) {
	s.model.Initialize(snap)
	for _, f := range s.forces {
		f.Init(s.model)
	}
	s.alphaTarget = 0
	s.Restart()
}

// Step runs one tick. It reports whether forces were applied; once alpha
// falls below AlphaMin the layout is settled and only pins are enforced.
func (s *Simulation) Step() bool {
	s.ticks++
	s.alpha += (s.alphaTarget - s.alpha) * s.opts.AlphaDecay
	if s.Settled() || s.model.Len() == 0 {
		s.model.snapPinned()
		return false
	}
	for _, f := range s.forces {
		f.Apply(s.model, s.alpha)
	}
	s.model.Integrate(s.opts.VelocityDecay)
	return true
}

// Settled reports whether alpha has cooled below AlphaMin.
func (s *Simulation) Settled() bool { return s.alpha < s.opts.AlphaMin }

// Alpha returns the current alpha.
func (s *Simulation) Alpha() float64 { return s.alpha }

// AlphaTarget returns the value alpha decays toward.
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// Ticks returns the number of Step calls since creation.
func (s *Simulation) Ticks() uint64 { return s.ticks }

// Reheat sets the alpha target and raises alpha to at least that value. A
// non-positive target uses Options.Reheat.
func (s *Simulation) Reheat(target float64) {
	if target <= 0 {
		target = s.opts.Reheat
	}
	s.alphaTarget = target
	if s.alpha < target {
		s.alpha = target
	}
}

// Cool lets alpha decay back to zero.
func (s *Simulation) Cool() { s.alphaTarget = 0 }

// Restart sets alpha back to 1.
func (s *Simulation) Restart() { s.alpha = 1 }

// Resize changes the scene size.
func (s *Simulation) Resize(width, height float64) { s.model.Resize(width, height) }
