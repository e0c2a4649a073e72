// Package kg holds the knowledge-graph data model exchanged with the data
// collaborator: entities, relationships and the snapshots that carry them.
package kg

// EntityType classifies an entity. Unknown values are kept verbatim.
type EntityType string

const (
	Person       EntityType = "PERSON"
	Organization EntityType = "ORGANIZATION"
	Location     EntityType = "LOCATION"
	Date         EntityType = "DATE"
	Product      EntityType = "PRODUCT"
	Concept      EntityType = "CONCEPT"
	Event        EntityType = "EVENT"
)

// EntityTypes lists the known entity types in display order.
var EntityTypes = []EntityType{Person, Organization, Location, Date, Product, Concept, Event}

// Known reports whether t is one of the known entity types.
func (t EntityType) Known() bool {
	for _, k := range EntityTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Node is an entity in a snapshot.
type Node struct {
	ID    string     `json:"id" yaml:"id"`
	Label string     `json:"label" yaml:"label"`
	Type  EntityType `json:"type" yaml:"type"`
	Attrs Attributes `json:"properties" yaml:"properties,omitempty"`
}

// Edge is a relationship between two entities of the same snapshot.
type Edge struct {
	Source string     `json:"source" yaml:"source"`
	Target string     `json:"target" yaml:"target"`
	Label  string     `json:"label" yaml:"label"`
	Attrs  Attributes `json:"properties" yaml:"properties,omitempty"`
}

// Snapshot is the unit exchanged with the data collaborator. Order is kept
// so rendering z-order is deterministic.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Empty reports whether the snapshot has no nodes.
func (s Snapshot) Empty() bool { return len(s.Nodes) == 0 }

// NodeIndex maps node ids to their position in Nodes.
func (s Snapshot) NodeIndex() map[string]int {
	idx := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// WithoutEdges returns a copy of s that keeps the nodes only.
func (s Snapshot) WithoutEdges() Snapshot {
	return Snapshot{Nodes: s.Nodes, Edges: nil}
}

// Stats summarizes the graph behind an objective.
type Stats struct {
	TotalEntities          int            `json:"total_entities"`
	TotalRelationships     int            `json:"total_relationships"`
	EntityTypeCounts       map[string]int `json:"entity_type_counts"`
	RelationshipTypeCounts map[string]int `json:"relationship_type_counts"`
}
