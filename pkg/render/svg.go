package render

import (
	"github.com/recera/kgview/pkg/renderer/html"
	"github.com/recera/kgview/pkg/vdom"
)

const svgNS = "http://www.w3.org/2000/svg"

// SVG describes a frame as an <svg> tree. Edges are drawn first so nodes
// sit on top, and nodes keep snapshot order.
func SVG(f *Frame) *vdom.VNode {
	k := f.Transform.K
	if k == 0 {
		k = 1
	}

	edges := make([]*vdom.VNode, 0, len(f.Edges))
	edgeLabels := make([]*vdom.VNode, 0, len(f.Edges))
	for _, e := range f.Edges {
		key := "edge:" + e.Source + "->" + e.Target
		edges = append(edges, vdom.NewKeyed("line", key, vdom.Props{
			"x1":             e.X1,
			"y1":             e.Y1,
			"x2":             e.X2,
			"y2":             e.Y2,
			"stroke":         Style.EdgeColor,
			"stroke-opacity": Style.EdgeOpacity,
			"stroke-width":   Style.EdgeWidth * k,
		}))
		if e.Label == "" {
			continue
		}
		edgeLabels = append(edgeLabels, vdom.NewElement("text", vdom.Props{
			"x":           e.LabelX,
			"y":           e.LabelY,
			"font-size":   Style.EdgeFontSize * k,
			"fill":        Style.EdgeLabelColor,
			"text-anchor": "middle",
		}, vdom.NewText(e.Label)))
	}

	nodes := make([]*vdom.VNode, 0, len(f.Nodes))
	labels := make([]*vdom.VNode, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		var rings []*vdom.VNode
		if n.Selected {
			rings = append(rings, ring(n, 3*k, Style.SelectedColor, 2*k))
		}
		if n.Hover {
			rings = append(rings, ring(n, 2*k, Style.HoverColor, 1.5*k))
		}
		circle := vdom.NewElement("circle", vdom.Props{
			"cx":           n.X,
			"cy":           n.Y,
			"r":            n.R,
			"fill":         n.Fill,
			"stroke":       Style.NodeStroke,
			"stroke-width": Style.NodeStrokeWidth * k,
			"data-id":      n.ID,
			"cursor":       "pointer",
		}, vdom.NewElement("title", nil, vdom.NewText(n.Tooltip)))
		nodes = append(nodes, vdom.NewKeyed("g", "node:"+n.ID, vdom.Props{"class": "node"},
			append(rings, circle)...))

		labels = append(labels, vdom.NewElement("text", vdom.Props{
			"x":           n.X,
			"y":           n.LabelY,
			"font-size":   Style.LabelFontSize * k,
			"fill":        Style.LabelColor,
			"text-anchor": "middle",
		}, vdom.NewText(n.Label)))
	}

	children := []*vdom.VNode{
		vdom.NewElement("rect", vdom.Props{"width": f.Width, "height": f.Height, "fill": Style.Background}),
		vdom.NewElement("g", vdom.Props{"class": "edges"}, edges...),
		vdom.NewElement("g", vdom.Props{"class": "edge-labels"}, edgeLabels...),
		vdom.NewElement("g", vdom.Props{"class": "nodes"}, nodes...),
		vdom.NewElement("g", vdom.Props{"class": "node-labels"}, labels...),
	}
	if f.Empty {
		children = append(children, vdom.NewElement("text", vdom.Props{
			"class":       "empty",
			"x":           f.Width / 2,
			"y":           f.Height / 2,
			"fill":        Style.EdgeLabelColor,
			"text-anchor": "middle",
		}, vdom.NewText(f.Message)))
	}
	if s := statusText(f.Status); s != nil {
		children = append(children, s)
	}

	return vdom.NewElement("svg", vdom.Props{
		"xmlns":   svgNS,
		"width":   f.Width,
		"height":  f.Height,
		"viewBox": "0 0 " + html.FormatValue(f.Width) + " " + html.FormatValue(f.Height),
		"class":   "kg-graph",
	}, children...)
}

func ring(n NodeGlyph, gap float64, color string, width float64) *vdom.VNode {
	return vdom.NewElement("circle", vdom.Props{
		"cx":           n.X,
		"cy":           n.Y,
		"r":            n.R + gap,
		"fill":         "none",
		"stroke":       color,
		"stroke-width": width,
	})
}

func statusText(s Status) *vdom.VNode {
	switch {
	case s.Err != "":
		return vdom.NewElement("text", vdom.Props{"class": "status error", "x": 10, "y": 20, "fill": Style.ErrorColor},
			vdom.NewText("Error loading knowledge graph: "+s.Err))
	case s.Loading:
		return vdom.NewElement("text", vdom.Props{"class": "status loading", "x": 10, "y": 20, "fill": Style.EdgeLabelColor},
			vdom.NewText("Loading knowledge graph..."))
	}
	return nil
}

// RenderSVG serializes a frame to SVG markup.
func RenderSVG(f *Frame) (string, error) {
	return html.RenderToString(SVG(f))
}
