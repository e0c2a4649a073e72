package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recera/kgview/pkg/kg"
)

func TestFilter_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Filter
		want Filter
	}{
		{"defaults", Filter{}, Filter{Limit: 100}},
		{"trims and upcases", Filter{Name: "  ada ", Type: " person"}, Filter{Name: "ada", Type: kg.Person, Limit: 100}},
		{"caps limit", Filter{Limit: 10000}, Filter{Limit: 500}},
		{"negative limit", Filter{Limit: -3}, Filter{Limit: 100}},
		{"keeps valid limit", Filter{Limit: 1}, Filter{Limit: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	ada := kg.Node{ID: "1", Label: "Ada Lovelace", Type: kg.Person}

	assert.True(t, Filter{}.Matches(ada))
	assert.True(t, Filter{Name: "love"}.Matches(ada))
	assert.True(t, Filter{Name: "ADA", Type: kg.Person}.Matches(ada))
	assert.False(t, Filter{Type: kg.Location}.Matches(ada))
	assert.False(t, Filter{Name: "babbage"}.Matches(ada))
}

func TestClampDepth(t *testing.T) {
	assert.Equal(t, 2, ClampDepth(0))
	assert.Equal(t, 1, ClampDepth(-4))
	assert.Equal(t, 3, ClampDepth(9))
	assert.Equal(t, 1, ClampDepth(1))
}
