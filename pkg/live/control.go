package live

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/source"
)

// Control is a JSON command sent by the page as a text message.
type Control struct {
	Type string `json:"type" validate:"required,oneof=select reset search refresh resize zoom fit"`

	ID string `json:"id,omitempty" validate:"required_if=Type select"`

	Name       string `json:"name,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	Limit      int    `json:"limit,omitempty" validate:"gte=0"`

	Width  float64 `json:"width,omitempty" validate:"required_if=Type resize,gte=0"`
	Height float64 `json:"height,omitempty" validate:"required_if=Type resize,gte=0"`
	Factor float64 `json:"factor,omitempty" validate:"required_if=Type zoom,gte=0"`
}

// Target receives decoded control commands. *engine.Engine implements it.
type Target interface {
	Select(id string) bool
	Reset() bool
	Search(f source.Filter) bool
	Refresh() bool
	Resize(width, height float64) bool
	Zoom(factor float64) bool
	Fit(padding float64) bool
}

var validate = validator.New()

// ParseControl decodes and validates a control message.
func ParseControl(data []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, kg.InvalidInput("control", "malformed message: %v", err)
	}
	if err := validate.Struct(c); err != nil {
		return Control{}, kg.InvalidInput("control", "%v", err)
	}
	return c, nil
}

// fitPadding is the margin left around the graph by the fit command.
const fitPadding = 40

// Apply forwards c to t.
func (c Control) Apply(t Target) error {
	var ok bool
	switch c.Type {
	case "select":
		ok = t.Select(c.ID)
	case "reset":
		ok = t.Reset()
	case "search":
		ok = t.Search(source.Filter{Name: c.Name, Type: kg.EntityType(c.EntityType), Limit: c.Limit})
	case "refresh":
		ok = t.Refresh()
	case "resize":
		ok = t.Resize(c.Width, c.Height)
	case "zoom":
		ok = t.Zoom(c.Factor)
	case "fit":
		ok = t.Fit(fitPadding)
	default:
		return kg.InvalidInput("control", "unknown type %q", c.Type)
	}
	if !ok {
		return fmt.Errorf("control %s: engine is not running", c.Type)
	}
	return nil
}

func entityTypeNames() []string {
	out := make([]string, len(kg.EntityTypes))
	for i, t := range kg.EntityTypes {
		out[i] = string(t)
	}
	return out
}
