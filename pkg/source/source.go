// Package source defines the data collaborator the engine pulls snapshots
// from.
package source

import (
	"context"
	"strings"

	"github.com/recera/kgview/pkg/kg"
)

// Search limits.
const (
	DefaultLimit = 100
	MaxLimit     = 500

	DefaultDepth = 2
	MinDepth     = 1
	MaxDepth     = 3
)

// Filter narrows a full-view fetch.
type Filter struct {
	Name  string        `json:"name,omitempty" yaml:"name"`
	Type  kg.EntityType `json:"type,omitempty" yaml:"type"`
	Limit int           `json:"limit,omitempty" yaml:"limit"`
}

// Normalize trims the name and bounds the limit: zero or negative becomes
// DefaultLimit, anything above MaxLimit becomes MaxLimit.
func (f Filter) Normalize() Filter {
	f.Name = strings.TrimSpace(f.Name)
	f.Type = kg.EntityType(strings.ToUpper(strings.TrimSpace(string(f.Type))))
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	return f
}

// Matches reports whether a node passes the name and type filter. Name
// matching is a case-insensitive substring test.
func (f Filter) Matches(n kg.Node) bool {
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(n.Label), strings.ToLower(f.Name)) {
		return false
	}
	return true
}

// ClampDepth bounds a neighborhood depth to [MinDepth, MaxDepth]; zero means
// DefaultDepth.
func ClampDepth(depth int) int {
	switch {
	case depth == 0:
		return DefaultDepth
	case depth < MinDepth:
		return MinDepth
	case depth > MaxDepth:
		return MaxDepth
	}
	return depth
}

// Source fetches graph snapshots. Implementations must honor ctx
// cancellation and be safe for concurrent use.
type Source interface {
	FetchEntities(ctx context.Context, f Filter) (kg.Snapshot, error)
	FetchNeighborhood(ctx context.Context, entityID string, depth int) (kg.Snapshot, error)
}

// StatsSource is implemented by sources that can summarize the graph.
type StatsSource interface {
	FetchStats(ctx context.Context) (kg.Stats, error)
}

// Query families, used as cache scopes by sources that cache results.
const (
	ScopeEntities     = "entities"
	ScopeNeighborhood = "neighborhood"
)

// Invalidator is implemented by sources that cache results. Invalidate drops
// the cached results of one query family, or all of them when scope is
// empty, and returns how many were dropped.
type Invalidator interface {
	Invalidate(scope string) int
}

// Func adapts plain functions to a Source. Nil functions return empty
// snapshots.
type Func struct {
	Entities     func(ctx context.Context, f Filter) (kg.Snapshot, error)
	Neighborhood func(ctx context.Context, entityID string, depth int) (kg.Snapshot, error)
}

func (s Func) FetchEntities(ctx context.Context, f Filter) (kg.Snapshot, error) {
	if s.Entities == nil {
		return kg.Snapshot{}, nil
	}
	return s.Entities(ctx, f)
}

func (s Func) FetchNeighborhood(ctx context.Context, entityID string, depth int) (kg.Snapshot, error) {
	if s.Neighborhood == nil {
		return kg.Snapshot{}, nil
	}
	return s.Neighborhood(ctx, entityID, depth)
}
