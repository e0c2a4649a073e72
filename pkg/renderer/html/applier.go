package html

import (
	"fmt"
	"html"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/recera/kgview/pkg/vdom"
)

// voidElements are HTML elements that cannot have children
var voidElements = map[string]bool{
	"br":    true,
	"hr":    true,
	"img":   true,
	"input": true,
	"link":  true,
	"meta":  true,
}

// svgElements are closed with "/>" when they have no children.
var svgElements = map[string]bool{
	"circle":   true,
	"line":     true,
	"path":     true,
	"rect":     true,
	"ellipse":  true,
	"polyline": true,
	"polygon":  true,
	"use":      true,
}

// booleanAttributes are HTML attributes that are boolean flags
var booleanAttributes = map[string]bool{
	"checked":   true,
	"disabled":  true,
	"readonly":  true,
	"autofocus": true,
}

// Applier writes a VNode tree as HTML/SVG markup. Attributes are written in
// sorted order so equal trees serialize to equal bytes.
type Applier struct {
	w   io.Writer
	err error
}

// NewApplier creates a new applier writing to w.
func NewApplier(w io.Writer) *Applier {
	return &Applier{w: w}
}

// Apply renders a VNode tree.
func (a *Applier) Apply(node *vdom.VNode) error {
	if node == nil {
		return nil
	}
	a.renderNode(node)
	return a.err
}

// write helper that tracks errors
func (a *Applier) write(s string) {
	if a.err != nil {
		return
	}
	_, a.err = io.WriteString(a.w, s)
}

func (a *Applier) renderNode(node *vdom.VNode) {
	if node == nil || a.err != nil {
		return
	}

	switch node.Kind {
	case vdom.KindText:
		a.write(html.EscapeString(node.Text))
	case vdom.KindRaw:
		a.write(node.Text)
	case vdom.KindElement:
		a.renderElement(node)
	case vdom.KindFragment:
		for i := range node.Kids {
			a.renderNode(&node.Kids[i])
		}
	}
}

func (a *Applier) renderElement(node *vdom.VNode) {
	a.write("<")
	a.write(node.Tag)

	keys := make([]string, 0, len(node.Props))
	for key := range node.Props {
		// Skip event handlers and special props
		if key == "key" || key == "ref" || (len(key) > 2 && key[0] == 'o' && key[1] == 'n') {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := node.Props[key]
		if booleanAttributes[key] {
			if v, ok := value.(bool); ok && v {
				a.write(" ")
				a.write(key)
			}
			continue
		}

		valueStr := FormatValue(value)
		// Security: prevent javascript: URLs in href attributes
		if (key == "href" || key == "xlink:href") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(valueStr)), "javascript:") {
			valueStr = "#"
		}

		a.write(" ")
		a.write(key)
		a.write(`="`)
		a.write(html.EscapeString(valueStr))
		a.write(`"`)
	}

	if voidElements[node.Tag] {
		a.write(">")
		return
	}
	if svgElements[node.Tag] && len(node.Kids) == 0 {
		a.write("/>")
		return
	}
	a.write(">")

	// Style content is not escaped
	raw := node.Tag == "style"
	for i := range node.Kids {
		if raw && node.Kids[i].Kind == vdom.KindText {
			a.write(node.Kids[i].Text)
			continue
		}
		a.renderNode(&node.Kids[i])
	}

	a.write("</")
	a.write(node.Tag)
	a.write(">")
}

// FormatValue formats an attribute value. Floats are written with at most
// two decimals and without trailing zeros.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// RenderToString is a convenience function to render a VNode to a string
func RenderToString(node *vdom.VNode) (string, error) {
	var buf strings.Builder
	if err := NewApplier(&buf).Apply(node); err != nil {
		return "", err
	}
	return buf.String(), nil
}
