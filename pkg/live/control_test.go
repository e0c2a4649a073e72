package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/source"
)

type recorder struct {
	calls  []string
	filter source.Filter
	w, h   float64
	factor float64
	down   bool
}

func (r *recorder) ok(call string) bool {
	r.calls = append(r.calls, call)
	return !r.down
}

func (r *recorder) Select(id string) bool { return r.ok("select:" + id) }
func (r *recorder) Reset() bool { return r.ok("reset") }
func (r *recorder) Refresh() bool { return r.ok("refresh") }
func (r *recorder) Fit(float64) bool { return r.ok("fit") }

func (r *recorder) Search(f source.Filter) bool {
	r.filter = f
	return r.ok("search")
}

func (r *recorder) Resize(w, h float64) bool {
	r.w, r.h = w, h
	return r.ok("resize")
}

func (r *recorder) Zoom(factor float64) bool {
	r.factor = factor
	return r.ok("zoom")
}

func TestParseControl(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		wantErr bool
	}{
		{"select", `{"type":"select","id":"ada"}`, false},
		{"select without id", `{"type":"select"}`, true},
		{"reset", `{"type":"reset"}`, false},
		{"search", `{"type":"search","name":"ada","entity_type":"PERSON","limit":10}`, false},
		{"negative limit", `{"type":"search","limit":-1}`, true},
		{"resize", `{"type":"resize","width":1024,"height":768}`, false},
		{"resize without size", `{"type":"resize"}`, true},
		{"zoom", `{"type":"zoom","factor":1.5}`, false},
		{"unknown", `{"type":"explode"}`, true},
		{"missing type", `{}`, true},
		{"not json", `select ada`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseControl([]byte(tt.msg))
			if tt.wantErr {
				assert.ErrorIs(t, err, kg.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestControlApply(t *testing.T) {
	r := &recorder{}
	for _, msg := range []string{
		`{"type":"select","id":"ada"}`,
		`{"type":"search","name":"lon","entity_type":"LOCATION","limit":5}`,
		`{"type":"resize","width":640,"height":480}`,
		`{"type":"zoom","factor":2}`,
		`{"type":"fit"}`,
		`{"type":"refresh"}`,
		`{"type":"reset"}`,
	} {
		c, err := ParseControl([]byte(msg))
		require.NoError(t, err)
		require.NoError(t, c.Apply(r))
	}
	assert.Equal(t, []string{"select:ada", "search", "resize", "zoom", "fit", "refresh", "reset"}, r.calls)
	assert.Equal(t, source.Filter{Name: "lon", Type: kg.Location, Limit: 5}, r.filter)
	assert.Equal(t, 640.0, r.w)
	assert.Equal(t, 480.0, r.h)
	assert.Equal(t, 2.0, r.factor)

	r.down = true
	assert.Error(t, Control{Type: "reset"}.Apply(r))
}
