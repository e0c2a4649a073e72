package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/layout"
	"github.com/recera/kgview/pkg/vdom"
	"github.com/recera/kgview/pkg/viewport"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.873, 87},
		{0.125, 13},
		{0.285, 29},
		{0.5, 50},
		{0.994, 99},
		{0.995, 100},
		{0, 0},
		{1, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.in), "Percent(%v)", tt.in)
	}
}

func TestTooltip(t *testing.T) {
	n := kg.Node{ID: "1", Label: "Ada Lovelace", Type: kg.Person}
	assert.Equal(t, "Ada Lovelace (PERSON)", Tooltip(n), "unknown confidence omits the line")

	n.Attrs = n.Attrs.WithConfidence(0.873)
	assert.Equal(t, "Ada Lovelace (PERSON)\nConfidence: 87%", Tooltip(n))
}

func TestColor(t *testing.T) {
	assert.Equal(t, "#3b82f6", Color(kg.Person))
	assert.Equal(t, "#ef4444", Color(kg.Event))
	assert.Equal(t, DefaultColor, Color("SPACESHIP"))
	for _, typ := range kg.EntityTypes {
		assert.NotEqual(t, DefaultColor, Color(typ), typ)
	}
}

func sample() Input {
	snap := kg.Snapshot{
		Nodes: []kg.Node{
			{ID: "a", Label: "Ada", Type: kg.Person},
			{ID: "b", Label: "Analytical Engine", Type: kg.Product},
		},
		Edges: []kg.Edge{{Source: "a", Target: "b", Label: "DESIGNED"}},
	}
	return Input{
		Seq:    3,
		Width:  800,
		Height: 600,
		Positions: []layout.Body{
			{ID: "a", X: 100, Y: 100},
			{ID: "b", X: 200, Y: 300, Pinned: true},
		},
		Snapshot:  snap,
		Transform: viewport.Transform{X: 10, Y: 20, K: 2},
		Hover:     "b",
		Selected:  "a",
	}
}

func TestBuild(t *testing.T) {
	f := Build(sample())

	require.Len(t, f.Nodes, 2)
	a := f.Nodes[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, 210.0, a.X)
	assert.Equal(t, 220.0, a.Y)
	assert.Equal(t, 30.0, a.R)
	assert.Equal(t, 270.0, a.LabelY)
	assert.Equal(t, "#3b82f6", a.Fill)
	assert.True(t, a.Selected)
	assert.False(t, a.Hover)

	b, ok := f.Node("b")
	require.True(t, ok)
	assert.True(t, b.Hover)
	assert.True(t, b.Pinned)

	require.Len(t, f.Edges, 1)
	e := f.Edges[0]
	assert.Equal(t, 210.0, e.X1)
	assert.Equal(t, 410.0, e.X2)
	assert.Equal(t, 310.0, e.LabelX)
	assert.Equal(t, 420.0, e.LabelY)
	assert.False(t, f.Empty)
}

func TestBuild_Confidence(t *testing.T) {
	in := sample()
	in.Snapshot.Nodes[0].Attrs = in.Snapshot.Nodes[0].Attrs.WithConfidence(0.873)
	f := Build(in)

	a, _ := f.Node("a")
	b, _ := f.Node("b")
	assert.Equal(t, "87%", a.Confidence)
	assert.Empty(t, b.Confidence)
}

func TestBuild_ExactlyTheSnapshotNodes(t *testing.T) {
	in := sample()
	in.Positions = append(in.Positions, layout.Body{ID: "ghost", X: 1, Y: 1})
	f := Build(in)

	ids := make([]string, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestBuild_Empty(t *testing.T) {
	f := Build(Input{Width: 800, Height: 600})
	assert.True(t, f.Empty)
	assert.Equal(t, EmptyMessage, f.Message)
	assert.Equal(t, viewport.Identity(), f.Transform)

	f = Build(Input{Width: 800, Height: 600, Status: Status{Loading: true}})
	assert.False(t, f.Empty, "loading is not the empty state")
}

func TestBuild_DoesNotAliasInput(t *testing.T) {
	in := sample()
	f := Build(in)
	in.Positions[0].X = -999
	in.Snapshot.Nodes[0].Label = "changed"
	assert.Equal(t, 210.0, f.Nodes[0].X)
	assert.Equal(t, "Ada", f.Nodes[0].Label)
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(Build(sample()))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(svg, "<svg "))
	assert.Contains(t, svg, `viewBox="0 0 800 600"`)
	assert.Contains(t, svg, `<circle cursor="pointer" cx="210" cy="220" data-id="a" fill="#3b82f6" r="30" stroke="#fff" stroke-width="4">`)
	assert.Contains(t, svg, "<title>Ada (PERSON)</title>")
	assert.Contains(t, svg, `stroke="#ffcf33"`)
	assert.Contains(t, svg, `stroke="#9ad0ff"`)
	assert.Contains(t, svg, ">DESIGNED</text>")
	assert.Less(t, strings.Index(svg, `class="edges"`), strings.Index(svg, `class="nodes"`))
	assert.NotContains(t, svg, EmptyMessage)
}

func TestRenderSVG_EmptyAndError(t *testing.T) {
	svg, err := RenderSVG(Build(Input{Width: 400, Height: 300, Status: Status{Err: "timeout"}}))
	require.NoError(t, err)
	assert.Contains(t, svg, EmptyMessage)
	assert.Contains(t, svg, "Error loading knowledge graph: timeout")
}

func TestSVG_Tree(t *testing.T) {
	tree := SVG(Build(sample()))

	a := tree.Find("node:a")
	require.NotNil(t, a)
	var circle *vdom.VNode
	a.Walk(func(n *vdom.VNode) {
		if id, ok := n.Attr("data-id"); ok && id == "a" {
			circle = n
		}
	})
	require.NotNil(t, circle)
	fill, _ := circle.Attr("fill")
	assert.Equal(t, "#3b82f6", fill)

	rings := 0
	a.Walk(func(n *vdom.VNode) {
		if stroke, _ := n.Attr("stroke"); stroke == Style.SelectedColor {
			rings++
		}
	})
	assert.Equal(t, 1, rings, "selected node has one selection ring")

	b := tree.Find("node:b")
	require.NotNil(t, b)
	hover := false
	b.Walk(func(n *vdom.VNode) {
		if stroke, _ := n.Attr("stroke"); stroke == Style.HoverColor {
			hover = true
		}
	})
	assert.True(t, hover)
	assert.NotNil(t, tree.Find("edge:a->b"))
	assert.Nil(t, tree.Find("node:ghost"))
}
