package layout

import "math"

// maxQuadDepth bounds subdivision when points are nearly coincident.
const maxQuadDepth = 32

// quad is a node of a point-region quadtree. Leaves hold the indices of the
// points that fell into them; internal quads hold up to four children.
type quad struct {
	children [4]*quad
	points   []int

	// Aggregates filled by the force that owns the tree.
	x, y  float64
	value float64
	r     float64
}

func (q *quad) leaf() bool { return q.points != nil }

// quadtree indexes a set of points inside a square extent.
type quadtree struct {
	xs, ys         []float64
	root           *quad
	x0, y0, x1, y1 float64
}

// newQuadtree builds a tree over n points whose coordinates are returned by at.
func newQuadtree(n int, at func(i int) (float64, float64)) *quadtree {
	t := &quadtree{xs: make([]float64, n), ys: make([]float64, n)}
	if n == 0 {
		return t
	}
	idx := make([]int, n)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < n; i++ {
		x, y := at(i)
		t.xs[i], t.ys[i] = x, y
		idx[i] = i
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	// Square extent with a little slack so points on the max edge stay inside.
	size := math.Max(maxX-minX, maxY-minY)
	if size <= 0 {
		size = 1
	}
	size *= 1 + 1e-9
	t.x0, t.y0 = minX, minY
	t.x1, t.y1 = minX+size, minY+size
	t.root = t.build(idx, t.x0, t.y0, t.x1, t.y1, 0)
	return t
}

func (t *quadtree) build(idx []int, x0, y0, x1, y1 float64, depth int) *quad {
	if len(idx) == 0 {
		return nil
	}
	if len(idx) == 1 || depth >= maxQuadDepth || t.coincident(idx) {
		return &quad{points: idx}
	}
	mx, my := (x0+x1)/2, (y0+y1)/2
	var buckets [4][]int
	for _, i := range idx {
		b := 0
		if t.xs[i] >= mx {
			b |= 1
		}
		if t.ys[i] >= my {
			b |= 2
		}
		buckets[b] = append(buckets[b], i)
	}
	q := &quad{}
	q.children[0] = t.build(buckets[0], x0, y0, mx, my, depth+1)
	q.children[1] = t.build(buckets[1], mx, y0, x1, my, depth+1)
	q.children[2] = t.build(buckets[2], x0, my, mx, y1, depth+1)
	q.children[3] = t.build(buckets[3], mx, my, x1, y1, depth+1)
	return q
}

func (t *quadtree) coincident(idx []int) bool {
	x, y := t.xs[idx[0]], t.ys[idx[0]]
	for _, i := range idx[1:] {
		if t.xs[i] != x || t.ys[i] != y {
			return false
		}
	}
	return true
}

// visit walks the tree in pre-order. Returning true from fn skips the
// children of the visited quad.
func (t *quadtree) visit(fn func(q *quad, x0, y0, x1, y1 float64) bool) {
	if t.root == nil {
		return
	}
	visitQuad(t.root, t.x0, t.y0, t.x1, t.y1, fn)
}

func visitQuad(q *quad, x0, y0, x1, y1 float64, fn func(*quad, float64, float64, float64, float64) bool) {
	if fn(q, x0, y0, x1, y1) || q.leaf() {
		return
	}
	mx, my := (x0+x1)/2, (y0+y1)/2
	if c := q.children[0]; c != nil {
		visitQuad(c, x0, y0, mx, my, fn)
	}
	if c := q.children[1]; c != nil {
		visitQuad(c, mx, y0, x1, my, fn)
	}
	if c := q.children[2]; c != nil {
		visitQuad(c, x0, my, mx, y1, fn)
	}
	if c := q.children[3]; c != nil {
		visitQuad(c, mx, my, x1, y1, fn)
	}
}

// visitAfter walks the tree in post-order so aggregates can be computed from
// the children.
func (t *quadtree) visitAfter(fn func(q *quad)) {
	if t.root != nil {
		visitAfterQuad(t.root, fn)
	}
}

func visitAfterQuad(q *quad, fn func(*quad)) {
	for _, c := range q.children {
		if c != nil {
			visitAfterQuad(c, fn)
		}
	}
	fn(q)
}
