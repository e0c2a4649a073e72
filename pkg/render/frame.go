// Package render builds immutable frames from the layout and turns them into
// SVG.
package render

import (
	"fmt"
	"math"

	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/layout"
	"github.com/recera/kgview/pkg/viewport"
)

// EmptyMessage is shown when the current snapshot has no nodes.
const EmptyMessage = "No entities found."

// NodeGlyph is a node in screen coordinates.
type NodeGlyph struct {
	ID      string
	Label   string
	Type    kg.EntityType
	X, Y    float64
	R       float64
	Fill    string
	LabelY  float64
	Tooltip string

	// Confidence is the whole percentage, e.g. "87%"; empty when unknown.
	Confidence string

	Hover    bool
	Selected bool
	Pinned   bool
}

// EdgeGlyph is an edge in screen coordinates.
type EdgeGlyph struct {
	Source, Target string
	Label          string
	X1, Y1         float64
	X2, Y2         float64
	LabelX, LabelY float64
}

// Status carries the non-graph state shown with a frame.
type Status struct {
	Mode    string
	Loading bool
	Err     string
}

// Frame is everything a host needs to draw one tick. Frames are never
// mutated after Build returns.
type Frame struct {
	Seq       uint64
	Width     float64
	Height    float64
	Transform viewport.Transform
	Nodes     []NodeGlyph
	Edges     []EdgeGlyph
	Empty     bool
	Message   string
	Status    Status
	Alpha     float64
}

// Node returns the glyph with the given id.
func (f *Frame) Node(id string) (NodeGlyph, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeGlyph{}, false
}

// Input is the state a frame is built from.
type Input struct {
	Seq       uint64
	Width     float64
	Height    float64
	Positions []layout.Body
	Snapshot  kg.Snapshot
	Transform viewport.Transform
	Hover     string
	Selected  string
	Status    Status
	Alpha     float64
}

// Build produces a frame. It reads its input only.
func Build(in Input) *Frame {
	t := in.Transform
	if t.K == 0 {
		t = viewport.Identity()
	}
	f := &Frame{
		Seq:       in.Seq,
		Width:     in.Width,
		Height:    in.Height,
		Transform: t,
		Status:    in.Status,
		Alpha:     in.Alpha,
	}

	pos := make(map[string]layout.Body, len(in.Positions))
	for _, b := range in.Positions {
		pos[b.ID] = b
	}

	f.Nodes = make([]NodeGlyph, 0, len(in.Snapshot.Nodes))
	for _, n := range in.Snapshot.Nodes {
		b, ok := pos[n.ID]
		if !ok {
			continue
		}
		x, y := t.Apply(b.X, b.Y)
		f.Nodes = append(f.Nodes, NodeGlyph{
			ID:         n.ID,
			Label:      n.Label,
			Type:       n.Type,
			X:          x,
			Y:          y,
			R:          Style.NodeRadius * t.K,
			Fill:       Color(n.Type),
			LabelY:     y + Style.LabelOffset*t.K,
			Tooltip:    Tooltip(n),
			Confidence: confidence(n),
			Hover:      n.ID == in.Hover,
			Selected:   n.ID == in.Selected,
			Pinned:     b.Pinned,
		})
	}

	f.Edges = make([]EdgeGlyph, 0, len(in.Snapshot.Edges))
	for _, e := range in.Snapshot.Edges {
		s, ok := pos[e.Source]
		if !ok {
			continue
		}
		d, ok := pos[e.Target]
		if !ok {
			continue
		}
		x1, y1 := t.Apply(s.X, s.Y)
		x2, y2 := t.Apply(d.X, d.Y)
		f.Edges = append(f.Edges, EdgeGlyph{
			Source: e.Source,
			Target: e.Target,
			Label:  e.Label,
			X1:     x1, Y1: y1,
			X2: x2, Y2: y2,
			LabelX: (x1 + x2) / 2,
			LabelY: (y1 + y2) / 2,
		})
	}

	if len(f.Nodes) == 0 && !in.Status.Loading {
		f.Empty = true
		f.Message = EmptyMessage
	}
	return f
}

// Tooltip returns "<label> (<TYPE>)" followed by a confidence line when the
// confidence is known.
func Tooltip(n kg.Node) string {
	s := fmt.Sprintf("%s (%s)", n.Label, n.Type)
	if c, ok := n.Attrs.Conf(); ok {
		s += fmt.Sprintf("\nConfidence: %d%%", Percent(c))
	}
	return s
}

func confidence(n kg.Node) string {
	if c, ok := n.Attrs.Conf(); ok {
		return fmt.Sprintf("%d%%", Percent(c))
	}
	return ""
}

// Percent converts a confidence in [0, 1] to a whole percentage, rounding
// halves up. The product is first snapped to 9 decimals so 0.285 (stored as
// 28.4999...) reads as 29.
func Percent(c float64) int {
	p := math.Round(c*100*1e9) / 1e9
	return int(math.Floor(p + 0.5))
}
