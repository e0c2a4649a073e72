// Package vdom is a small immutable node tree used to describe render
// frames before they are serialized to markup.
package vdom

// VKind represents the type of virtual node
type VKind uint8

const (
	// KindElement represents an element node
	KindElement VKind = iota
	// KindText represents a text node
	KindText
	// KindFragment groups children without a parent element
	KindFragment
	// KindRaw is trusted markup written verbatim
	KindRaw
)

// Props holds the attributes of an element. Values are strings, numbers or
// bools; the serializer formats them.
type Props map[string]any

// VNode represents a virtual node.
// It is immutable once created.
type VNode struct {
	Kind VKind

	// Tag is the element name (e.g., "svg", "circle")
	Tag string

	Props Props

	// Kids contains child nodes
	Kids []VNode

	// Key identifies a node among its siblings (node or edge id)
	Key string

	// Text content for KindText and KindRaw
	Text string
}

// NewElement creates a new element VNode
func NewElement(tag string, props Props, children ...*VNode) *VNode {
	return &VNode{
		Kind:  KindElement,
		Tag:   tag,
		Props: props,
		Kids:  collect(children),
	}
}

// NewKeyed creates an element with a key.
func NewKeyed(tag, key string, props Props, children ...*VNode) *VNode {
	n := NewElement(tag, props, children...)
	n.Key = key
	return n
}

// NewText creates a new text VNode
func NewText(text string) *VNode {
	return &VNode{Kind: KindText, Text: text}
}

// NewRaw creates a node whose text is emitted without escaping.
func NewRaw(markup string) *VNode {
	return &VNode{Kind: KindRaw, Text: markup}
}

// NewFragment creates a new fragment VNode
func NewFragment(children ...*VNode) *VNode {
	return &VNode{Kind: KindFragment, Kids: collect(children)}
}

func collect(children []*VNode) []VNode {
	kids := make([]VNode, 0, len(children))
	for _, child := range children {
		if child != nil {
			kids = append(kids, *child)
		}
	}
	return kids
}

// IsElement returns true if this is an element node
func (v VNode) IsElement() bool { return v.Kind == KindElement }

// IsText returns true if this is a text node
func (v VNode) IsText() bool { return v.Kind == KindText }

// Find returns the first element in depth-first order whose key matches.
func (v *VNode) Find(key string) *VNode {
	if v.Key == key && v.Kind == KindElement {
		return v
	}
	for i := range v.Kids {
		if n := v.Kids[i].Find(key); n != nil {
			return n
		}
	}
	return nil
}

// Walk visits every node in depth-first order.
func (v *VNode) Walk(fn func(*VNode)) {
	fn(v)
	for i := range v.Kids {
		v.Kids[i].Walk(fn)
	}
}

// Attr returns a prop value.
func (v VNode) Attr(name string) (any, bool) {
	if v.Props == nil {
		return nil, false
	}
	val, ok := v.Props[name]
	return val, ok
}
