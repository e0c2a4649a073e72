package layout

import "math"

// Force mutates body velocities (or, for centering, positions) once per tick.
type Force interface {
	// Init is called after the model is (re)initialized.
	Init(m *Model)
	// Apply runs the force at the given alpha.
	Apply(m *Model, alpha float64)
}

// LinkForce pulls connected bodies toward a rest distance.
type LinkForce struct {
	Distance float64
	Strength float64 // 0 means 1/min(degree) per link

	strengths []float64
	bias      []float64
}

func (f *LinkForce) Init(m *Model) {
	count := make([]int, len(m.bodies))
	for _, l := range m.links {
		count[l.Source]++
		count[l.Target]++
	}
	f.strengths = make([]float64, len(m.links))
	f.bias = make([]float64, len(m.links))
	for i, l := range m.links {
		cs, ct := count[l.Source], count[l.Target]
		f.bias[i] = float64(cs) / float64(cs+ct)
		if f.Strength > 0 {
			f.strengths[i] = f.Strength
		} else {
			f.strengths[i] = 1 / float64(min(cs, ct))
		}
	}
}

func (f *LinkForce) Apply(m *Model, alpha float64) {
	if len(f.strengths) != len(m.links) {
		f.Init(m)
	}
	for i, l := range m.links {
		if l.Source == l.Target {
			continue
		}
		s, t := &m.bodies[l.Source], &m.bodies[l.Target]
		x := t.X + t.VX - s.X - s.VX
		y := t.Y + t.VY - s.Y - s.VY
		if x == 0 {
			x = m.jiggle()
		}
		if y == 0 {
			y = m.jiggle()
		}
		d := math.Sqrt(x*x + y*y)
		k := (d - f.Distance) / d * alpha * f.strengths[i]
		x *= k
		y *= k
		b := f.bias[i]
		t.VX -= x * b
		t.VY -= y * b
		s.VX += x * (1 - b)
		s.VY += y * (1 - b)
	}
}

// ChargeForce is an n-body repulsion (negative strength) or attraction
// (positive strength). Far groups of bodies are aggregated through a
// quadtree: a cell of width w at squared distance l is treated as a single
// body when w²/l < θ². Theta 0 (or Exact) visits every pair.
type ChargeForce struct {
	Strength    float64
	Theta       float64
	Exact       bool
	DistanceMin float64
	DistanceMax float64
}

func (f *ChargeForce) Init(*Model) {}

func (f *ChargeForce) Apply(m *Model, alpha float64) {
	n := len(m.bodies)
	if n < 2 {
		return
	}
	theta2 := f.Theta * f.Theta
	if f.Exact {
		theta2 = 0
	}
	dmin2 := f.DistanceMin * f.DistanceMin
	dmax2 := f.DistanceMax * f.DistanceMax
	if math.IsInf(f.DistanceMax, 1) || f.DistanceMax <= 0 {
		dmax2 = math.Inf(1)
	}

	tree := newQuadtree(n, func(i int) (float64, float64) { return m.bodies[i].X, m.bodies[i].Y })
	tree.visitAfter(func(q *quad) {
		if q.leaf() {
			q.x, q.y = tree.xs[q.points[0]], tree.ys[q.points[0]]
			q.value = f.Strength * float64(len(q.points))
			return
		}
		var x, y, weight, value float64
		for _, c := range q.children {
			if c == nil || c.value == 0 {
				continue
			}
			w := math.Abs(c.value)
			value += c.value
			weight += w
			x += w * c.x
			y += w * c.y
		}
		if weight > 0 {
			q.x, q.y = x/weight, y/weight
		}
		q.value = value
	})

	for i := range m.bodies {
		b := &m.bodies[i]
		tree.visit(func(q *quad, x0, _, x1, _ float64) bool {
			if q.value == 0 {
				return true
			}
			x, y := q.x-b.X, q.y-b.Y
			w := x1 - x0
			l := x*x + y*y

			// Far enough: treat the cell as one body.
			if w*w < theta2*l {
				if l < dmax2 {
					if x == 0 {
						x = m.jiggle()
						l += x * x
					}
					if y == 0 {
						y = m.jiggle()
						l += y * y
					}
					if l < dmin2 {
						l = math.Sqrt(dmin2 * l)
					}
					b.VX += x * q.value * alpha / l
					b.VY += y * q.value * alpha / l
				}
				return true
			}
			if !q.leaf() {
				return false
			}
			if l >= dmax2 {
				return true
			}

			// Leaf: apply each point individually.
			for _, j := range q.points {
				if j == i {
					continue
				}
				x, y := tree.xs[j]-b.X, tree.ys[j]-b.Y
				l := x*x + y*y
				if x == 0 {
					x = m.jiggle()
					l += x * x
				}
				if y == 0 {
					y = m.jiggle()
					l += y * y
				}
				if l < dmin2 {
					l = math.Sqrt(dmin2 * l)
				}
				k := f.Strength * alpha / l
				b.VX += x * k
				b.VY += y * k
			}
			return true
		})
	}
}

// CenterForce translates every body so the centroid lands on the scene
// center. It does not touch velocities.
type CenterForce struct {
	Strength float64
}

func (f *CenterForce) Init(*Model) {}

func (f *CenterForce) Apply(m *Model, _ float64) {
	n := len(m.bodies)
	if n == 0 {
		return
	}
	cx, cy := m.Center()
	var sx, sy float64
	for _, b := range m.bodies {
		sx += b.X
		sy += b.Y
	}
	sx = (sx/float64(n) - cx) * f.Strength
	sy = (sy/float64(n) - cy) * f.Strength
	for i := range m.bodies {
		m.bodies[i].X -= sx
		m.bodies[i].Y -= sy
	}
}

// CollideForce pushes apart bodies whose disks overlap, using each body's
// next position (x+vx, y+vy).
type CollideForce struct {
	Radius     float64
	Strength   float64
	Iterations int
}

func (f *CollideForce) Init(*Model) {}

func (f *CollideForce) Apply(m *Model, _ float64) {
	n := len(m.bodies)
	if n < 2 || f.Radius <= 0 {
		return
	}
	iterations := max(f.Iterations, 1)
	ri := f.Radius
	ri2 := ri * ri
	for k := 0; k < iterations; k++ {
		tree := newQuadtree(n, func(i int) (float64, float64) {
			b := m.bodies[i]
			return b.X + b.VX, b.Y + b.VY
		})
		tree.visitAfter(func(q *quad) { q.r = ri })

		for i := range m.bodies {
			b := &m.bodies[i]
			xi, yi := b.X+b.VX, b.Y+b.VY
			tree.visit(func(q *quad, x0, y0, x1, y1 float64) bool {
				r := ri + q.r
				if !q.leaf() {
					return x0 > xi+r || x1 < xi-r || y0 > yi+r || y1 < yi-r
				}
				for _, j := range q.points {
					if j <= i {
						continue
					}
					o := &m.bodies[j]
					x := xi - o.X - o.VX
					y := yi - o.Y - o.VY
					l := x*x + y*y
					if l >= r*r {
						continue
					}
					if x == 0 {
						x = m.jiggle()
						l += x * x
					}
					if y == 0 {
						y = m.jiggle()
						l += y * y
					}
					d := math.Sqrt(l)
					s := (r - d) / d * f.Strength
					x *= s
					y *= s
					rj2 := q.r * q.r
					share := rj2 / (ri2 + rj2)
					b.VX += x * share
					b.VY += y * share
					o.VX -= x * (1 - share)
					o.VY -= y * (1 - share)
				}
				return true
			})
		}
	}
}
