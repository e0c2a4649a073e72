package interaction

import (
	"github.com/recera/kgview/pkg/layout"
	"github.com/recera/kgview/pkg/viewport"
)

// Options tunes hit testing and gesture detection.
type Options struct {
	HitRadius     float64 // default 15, world units
	DragThreshold float64 // default 3, screen pixels
	Reheat        float64 // default 0.3, alpha target while dragging
}

func (o *Options) withDefaults() Options {
	d := Options{HitRadius: 15, DragThreshold: 3, Reheat: 0.3}
	if o == nil {
		return d
	}
	if o.HitRadius > 0 {
		d.HitRadius = o.HitRadius
	}
	if o.DragThreshold > 0 {
		d.DragThreshold = o.DragThreshold
	}
	if o.Reheat > 0 {
		d.Reheat = o.Reheat
	}
	return d
}

// Controller consumes pointer events on the tick goroutine. It pins dragged
// nodes in the simulation, pans and zooms the viewport, and reports clicks.
// Only one drag can be active at a time.
type Controller struct {
	opts  Options
	sim   *layout.Simulation
	view  *viewport.Transform
	click func(id string)

	state        State
	active       string
	downX, downY float64
	lastX, lastY float64
	hover        string
}

// New creates a controller. click is called with the node id when a node is
// pressed and released without moving past the drag threshold.
func New(sim *layout.Simulation, view *viewport.Transform, click func(id string), opts *Options) *Controller {
	return &Controller{
		opts:  opts.withDefaults(),
		sim:   sim,
		view:  view,
		click: click,
	}
}

// Handle applies one event. It reports whether anything visible changed.
func (c *Controller) Handle(ev Event) bool {
	switch ev.Kind {
	case Down:
		return c.down(ev.X, ev.Y)
	case Move:
		return c.move(ev.X, ev.Y)
	case Up:
		return c.up()
	case Wheel:
		return c.wheel(ev.X, ev.Y, ev.DeltaY)
	case Leave:
		return c.leave()
	}
	return false
}

// State returns the current gesture state.
func (c *Controller) State() State { return c.state }

// Active returns the pressed or dragged node id.
func (c *Controller) Active() string { return c.active }

// Hover returns the node under the pointer, if any.
func (c *Controller) Hover() string { return c.hover }

// Reset drops any gesture in progress without touching the simulation. It is
// used when the model has been re-initialized and old ids are gone.
func (c *Controller) Reset() {
	c.state = Idle
	c.active = ""
	c.hover = ""
}

func (c *Controller) pick(sx, sy float64) (string, bool) {
	wx, wy := c.view.Invert(sx, sy)
	return c.sim.Model().Hit(wx, wy, c.opts.HitRadius)
}

func (c *Controller) down(x, y float64) bool {
	changed := false
	if c.state == Dragging {
		changed = c.endDrag()
	}
	c.downX, c.downY = x, y
	c.lastX, c.lastY = x, y
	if id, ok := c.pick(x, y); ok {
		c.state = PressedNode
		c.active = id
		return changed
	}
	c.state = PressedBackground
	c.active = ""
	return changed
}

func (c *Controller) move(x, y float64) bool {
	changed := false
	if c.state != Dragging {
		id, _ := c.pick(x, y)
		if id != c.hover {
			c.hover = id
			changed = true
		}
	}

	switch c.state {
	case PressedNode:
		if c.beyondThreshold(x, y) {
			c.state = Dragging
			c.hover = c.active
			c.sim.Reheat(c.opts.Reheat)
			c.pinAt(x, y)
			changed = true
		}
	case PressedBackground:
		if c.beyondThreshold(x, y) {
			c.state = Panning
			c.view.Pan(x-c.lastX, y-c.lastY)
			changed = true
		}
	case Dragging:
		c.pinAt(x, y)
		changed = true
	case Panning:
		c.view.Pan(x-c.lastX, y-c.lastY)
		changed = true
	}
	c.lastX, c.lastY = x, y
	return changed
}

func (c *Controller) up() bool {
	switch c.state {
	case PressedNode:
		id := c.active
		c.state, c.active = Idle, ""
		if c.click != nil {
			c.click(id)
		}
		return true
	case Dragging:
		return c.endDrag()
	}
	c.state, c.active = Idle, ""
	return false
}

func (c *Controller) leave() bool {
	changed := c.hover != ""
	c.hover = ""
	if c.state == Dragging {
		changed = c.endDrag() || changed
	}
	c.state, c.active = Idle, ""
	return changed
}

func (c *Controller) wheel(x, y, deltaY float64) bool {
	before := *c.view
	c.view.Wheel(x, y, deltaY)
	if c.state == Dragging {
		// The world point under the pointer moved; keep the pin under it.
		c.pinAt(x, y)
	}
	return *c.view != before
}

func (c *Controller) endDrag() bool {
	c.sim.Model().Unpin(c.active)
	c.sim.Cool()
	c.state, c.active = Idle, ""
	return true
}

func (c *Controller) pinAt(sx, sy float64) {
	wx, wy := c.view.Invert(sx, sy)
	c.sim.Model().Pin(c.active, wx, wy)
}

func (c *Controller) beyondThreshold(x, y float64) bool {
	dx, dy := x-c.downX, y-c.downY
	t := c.opts.DragThreshold
	return dx*dx+dy*dy > t*t
}
