// Package layout implements the spatial model of a graph and the
// force-directed solver that lays it out.
package layout

import (
	"math"
	"math/rand"

	"github.com/recera/kgview/pkg/kg"
)

// Body is the simulation record of a node.
type Body struct {
	ID     string
	Index  int
	X, Y   float64
	VX, VY float64

	// Pin coordinates, valid while Pinned is set.
	FX, FY float64
	Pinned bool
}

// Link is an edge resolved to body indices.
type Link struct {
	Index          int
	Source, Target int
}

// Model owns the positions, velocities and pins of the current snapshot.
// It is not safe for concurrent use; the tick loop is its only mutator.
type Model struct {
	width, height float64
	jitter        float64
	rng           *rand.Rand

	bodies []Body
	links  []Link
	index  map[string]int
}

// NewModel creates an empty model for a scene of the given size.
func NewModel(opts *Options) *Model {
	o := opts.withDefaults()
	return &Model{
		width:  o.Width,
		height: o.Height,
		jitter: o.Jitter,
		rng:    rand.New(rand.NewSource(o.Seed)),
		index:  make(map[string]int),
	}
}

// Initialize replaces every body with a fresh one placed at the scene center
// plus a small random offset. Nothing from the previous snapshot survives.
// Edges whose endpoints are unknown are skipped.
func (m *Model) Initialize(s kg.Snapshot) {
	cx, cy := m.Center()
	m.bodies = make([]Body, 0, len(s.Nodes))
	m.index = make(map[string]int, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := m.index[n.ID]; dup {
			continue
		}
		i := len(m.bodies)
		m.index[n.ID] = i
		m.bodies = append(m.bodies, Body{
			ID:    n.ID,
			Index: i,
			X:     cx + (m.rng.Float64()*2-1)*m.jitter,
			Y:     cy + (m.rng.Float64()*2-1)*m.jitter,
		})
	}

	m.links = make([]Link, 0, len(s.Edges))
	for _, e := range s.Edges {
		si, ok := m.index[e.Source]
		if !ok {
			continue
		}
		ti, ok := m.index[e.Target]
		if !ok {
			continue
		}
		m.links = append(m.links, Link{Index: len(m.links), Source: si, Target: ti})
	}
}

// Integrate advances every body by one step. Pinned bodies snap to their pin
// and lose their velocity; free bodies apply friction and move.
func (m *Model) Integrate(velocityDecay float64) {
	keep := 1 - velocityDecay
	for i := range m.bodies {
		b := &m.bodies[i]
		if b.Pinned {
			b.X, b.Y = b.FX, b.FY
			b.VX, b.VY = 0, 0
			continue
		}
		b.VX *= keep
		b.VY *= keep
		b.X += b.VX
		b.Y += b.VY
	}
}

// snapPinned moves pinned bodies onto their pins without integrating the
// others. Used while the layout is settled.
func (m *Model) snapPinned() {
	for i := range m.bodies {
		b := &m.bodies[i]
		if b.Pinned {
			b.X, b.Y = b.FX, b.FY
			b.VX, b.VY = 0, 0
		}
	}
}

// Pin fixes a body at (x, y). It returns false if the id is unknown.
func (m *Model) Pin(id string, x, y float64) bool {
	i, ok := m.index[id]
	if !ok || math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	b := &m.bodies[i]
	b.FX, b.FY = x, y
	b.Pinned = true
	return true
}

// Unpin releases a body back to free motion.
func (m *Model) Unpin(id string) bool {
	i, ok := m.index[id]
	if !ok {
		return false
	}
	b := &m.bodies[i]
	b.Pinned = false
	b.FX, b.FY = 0, 0
	return true
}

// Pinned reports whether the body is pinned.
func (m *Model) Pinned(id string) bool {
	i, ok := m.index[id]
	return ok && m.bodies[i].Pinned
}

// Body returns a copy of the body with the given id.
func (m *Model) Body(id string) (Body, bool) {
	i, ok := m.index[id]
	if !ok {
		return Body{}, false
	}
	return m.bodies[i], true
}

// Positions returns a copy of every body in snapshot order.
func (m *Model) Positions() []Body {
	out := make([]Body, len(m.bodies))
	copy(out, m.bodies)
	return out
}

// Links returns the resolved links.
func (m *Model) Links() []Link {
	out := make([]Link, len(m.links))
	copy(out, m.links)
	return out
}

// Len returns the number of bodies.
func (m *Model) Len() int { return len(m.bodies) }

// Center returns the scene center.
func (m *Model) Center() (float64, float64) { return m.width / 2, m.height / 2 }

// Resize changes the scene size used by Initialize and the centering force.
func (m *Model) Resize(width, height float64) {
	if width > 0 {
		m.width = width
	}
	if height > 0 {
		m.height = height
	}
}

// Bounds returns the bounding box of every body.
func (m *Model) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if len(m.bodies) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = m.bodies[0].X, m.bodies[0].Y
	maxX, maxY = minX, minY
	for _, b := range m.bodies[1:] {
		minX = math.Min(minX, b.X)
		minY = math.Min(minY, b.Y)
		maxX = math.Max(maxX, b.X)
		maxY = math.Max(maxY, b.Y)
	}
	return minX, minY, maxX, maxY, true
}

// jiggle returns a tiny random offset used to separate coincident points.
func (m *Model) jiggle() float64 {
	return (m.rng.Float64() - 0.5) * 1e-6
}

// Hit returns the topmost body whose disk of radius r contains (x, y).
// Later bodies are drawn on top, so the search runs back to front.
func (m *Model) Hit(x, y, r float64) (string, bool) {
	r2 := r * r
	for i := len(m.bodies) - 1; i >= 0; i-- {
		b := m.bodies[i]
		dx, dy := x-b.X, y-b.Y
		if dx*dx+dy*dy <= r2 {
			return b.ID, true
		}
	}
	return "", false
}
