package kg

import (
	"encoding/json"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

const (
	keyConfidence = "confidence"
	keySourceIDs  = "source_ids"
)

// Attributes is the typed metadata of a node or edge. Fields the model does
// not know about are kept in Extra so they survive a round trip.
type Attributes struct {
	Confidence *float64
	SourceIDs  []string
	Extra      map[string]any
}

// Conf returns the confidence and whether it is set.
func (a Attributes) Conf() (float64, bool) {
	if a.Confidence == nil {
		return 0, false
	}
	return *a.Confidence, true
}

// WithConfidence returns a copy of a with the confidence set.
func (a Attributes) WithConfidence(c float64) Attributes {
	a.Confidence = &c
	return a
}

// FromMap builds Attributes from a raw property map.
func FromMap(m map[string]any) (Attributes, error) {
	var a Attributes
	for k, v := range m {
		switch k {
		case keyConfidence:
			if v == nil {
				continue
			}
			f, err := toFloat(v)
			if err != nil {
				return Attributes{}, fmt.Errorf("property %s: %w", k, err)
			}
			a.Confidence = &f
		case keySourceIDs:
			ids, err := toStrings(v)
			if err != nil {
				return Attributes{}, fmt.Errorf("property %s: %w", k, err)
			}
			a.SourceIDs = ids
		default:
			if a.Extra == nil {
				a.Extra = make(map[string]any)
			}
			a.Extra[k] = v
		}
	}
	return a, nil
}

// Map flattens the attributes back into a property map.
func (a Attributes) Map() map[string]any {
	m := make(map[string]any, len(a.Extra)+2)
	maps.Copy(m, a.Extra)
	if a.Confidence != nil {
		m[keyConfidence] = *a.Confidence
	}
	if a.SourceIDs != nil {
		m[keySourceIDs] = a.SourceIDs
	}
	return m
}

// MarshalJSON encodes the attributes as a flat property object.
func (a Attributes) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Map())
}

// UnmarshalJSON decodes a flat property object.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalYAML encodes the attributes as a flat mapping.
func (a Attributes) MarshalYAML() (any, error) {
	return a.Map(), nil
}

// UnmarshalYAML decodes a flat mapping.
func (a *Attributes) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]any
	if err := value.Decode(&m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toStrings(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), s...), nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}
