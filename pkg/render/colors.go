package render

import "github.com/recera/kgview/pkg/kg"

// Fill colors by entity type.
var Colors = map[kg.EntityType]string{
	kg.Person:       "#3b82f6",
	kg.Organization: "#f59e0b",
	kg.Location:     "#10b981",
	kg.Date:         "#8b5cf6",
	kg.Product:      "#ec4899",
	kg.Concept:      "#06b6d4",
	kg.Event:        "#ef4444",
}

// DefaultColor is used for unknown entity types.
const DefaultColor = "#6b7280"

// Color returns the fill color for an entity type.
func Color(t kg.EntityType) string {
	if c, ok := Colors[t]; ok {
		return c
	}
	return DefaultColor
}

// Style holds the fixed drawing constants, in world units where sizes apply.
var Style = struct {
	NodeRadius      float64
	NodeStroke      string
	NodeStrokeWidth float64
	LabelOffset     float64
	LabelFontSize   float64
	LabelColor      string
	EdgeColor       string
	EdgeOpacity     float64
	EdgeWidth       float64
	EdgeFontSize    float64
	EdgeLabelColor  string
	SelectedColor   string
	HoverColor      string
	Background      string
	ErrorColor      string
}{
	NodeRadius:      15,
	NodeStroke:      "#fff",
	NodeStrokeWidth: 2,
	LabelOffset:     25,
	LabelFontSize:   12,
	LabelColor:      "#333",
	EdgeColor:       "#999",
	EdgeOpacity:     0.6,
	EdgeWidth:       2,
	EdgeFontSize:    10,
	EdgeLabelColor:  "#666",
	SelectedColor:   "#ffcf33",
	HoverColor:      "#9ad0ff",
	Background:      "#f9fafb",
	ErrorColor:      "#dc2626",
}
