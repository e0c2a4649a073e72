// Package interaction turns raw pointer events into drags, pans, zooms and
// clicks on the graph.
package interaction

import "fmt"

// Kind identifies a pointer event.
type Kind uint8

const (
	Down Kind = iota + 1
	Move
	Up
	Wheel
	Leave
)

func (k Kind) String() string {
	switch k {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	case Wheel:
		return "wheel"
	case Leave:
		return "leave"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is a pointer event in screen coordinates. DeltaY is only set for
// Wheel events.
type Event struct {
	Kind   Kind
	X, Y   float64
	DeltaY float64
}

// State is the gesture state of the controller.
type State uint8

const (
	Idle State = iota
	PressedNode
	PressedBackground
	Dragging
	Panning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PressedNode:
		return "pressed-node"
	case PressedBackground:
		return "pressed-background"
	case Dragging:
		return "dragging"
	case Panning:
		return "panning"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}
