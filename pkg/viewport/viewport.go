// Package viewport maps world coordinates to screen coordinates with a
// translate + uniform scale transform.
package viewport

import "math"

// Scale limits.
const (
	MinScale = 0.1
	MaxScale = 4.0
)

// wheelSensitivity converts wheel delta into a zoom exponent.
const wheelSensitivity = 0.002

// Transform maps world (x, y) to screen (x*K + X, y*K + Y).
type Transform struct {
	X, Y float64
	K    float64
}

// Identity returns the transform with no translation and scale 1.
func Identity() Transform { return Transform{K: 1} }

// Reset sets t back to the identity.
func (t *Transform) Reset() { *t = Identity() }

// Apply maps a world point to the screen.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.K + t.X, y*t.K + t.Y
}

// Invert maps a screen point to the world.
func (t Transform) Invert(sx, sy float64) (float64, float64) {
	k := t.scale()
	return (sx - t.X) / k, (sy - t.Y) / k
}

// Pan translates by a screen-space delta.
func (t *Transform) Pan(dx, dy float64) {
	if !finite(dx) || !finite(dy) {
		return
	}
	t.X += dx
	t.Y += dy
}

// ZoomAt multiplies the scale by factor, keeping the world point under the
// screen point (px, py) fixed. The result is clamped to [MinScale, MaxScale].
func (t *Transform) ZoomAt(px, py, factor float64) {
	if !finite(px) || !finite(py) || !finite(factor) || factor <= 0 {
		return
	}
	t.zoomTo(px, py, clampScale(t.scale()*factor))
}

// Wheel zooms at the pointer by 2^(-deltaY*0.002): scrolling down zooms out.
// The exponent is bounded in log space so any finite delta, however large,
// lands on the scale limits instead of overflowing.
func (t *Transform) Wheel(px, py, deltaY float64) {
	if !finite(px) || !finite(py) || !finite(deltaY) {
		return
	}
	k := t.scale()
	e := -deltaY * wheelSensitivity
	switch lo, hi := math.Log2(MinScale/k), math.Log2(MaxScale/k); {
	case e <= lo:
		k = MinScale
	case e >= hi:
		k = MaxScale
	default:
		k = clampScale(k * math.Exp2(e))
	}
	t.zoomTo(px, py, k)
}

func (t *Transform) zoomTo(px, py, k float64) {
	wx, wy := t.Invert(px, py)
	t.K = k
	t.X = px - wx*k
	t.Y = py - wy*k
}

// Fit scales and centers the world rectangle inside a w×h screen leaving
// padding on every side.
func (t *Transform) Fit(minX, minY, maxX, maxY, w, h, padding float64) {
	gw := maxX - minX
	if gw <= 0 {
		gw = 1
	}
	gh := maxY - minY
	if gh <= 0 {
		gh = 1
	}
	s := math.Min((w-2*padding)/gw, (h-2*padding)/gh)
	if s <= 0 || !finite(s) {
		s = 1
	}
	s = clampScale(s)
	t.K = s
	t.X = w*0.5 - (minX+gw*0.5)*s
	t.Y = h*0.5 - (minY+gh*0.5)*s
}

// Focus centers the world point (x, y) in a w×h screen at scale k.
func (t *Transform) Focus(x, y, w, h, k float64) {
	if !finite(x) || !finite(y) {
		return
	}
	if !finite(k) || k <= 0 {
		k = t.scale()
	}
	k = clampScale(k)
	t.K = k
	t.X = w*0.5 - x*k
	t.Y = h*0.5 - y*k
}

// scale treats the zero value as scale 1.
func (t Transform) scale() float64 {
	if t.K == 0 {
		return 1
	}
	return t.K
}

func clampScale(k float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, k))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
