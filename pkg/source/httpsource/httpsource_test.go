package httpsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/kgview/internal/cache"
	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/source"
)

const neighborhoodJSON = `{
  "nodes": [
    {"id": "a", "label": "Ada", "type": "PERSON", "properties": {"confidence": 0.9, "source_ids": ["s1"]}},
    {"id": "b", "label": "Acme", "type": "ORGANIZATION", "properties": {}}
  ],
  "edges": [
    {"source": "a", "target": "b", "label": "WORKS_AT", "properties": {"confidence": 0.7}}
  ]
}`

func newClient(t *testing.T, h http.Handler, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL, ObjectiveID: "obj-1", RateLimit: -1}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, kg.ErrInvalidInput)

	_, err = New(Config{BaseURL: "not a url"})
	assert.ErrorIs(t, err, kg.ErrInvalidInput)
}

func TestFetchEntities(t *testing.T) {
	var gotQuery string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/graph/entities", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "a", "name": "Ada", "type": "PERSON", "confidence": 0.873, "source_ids": ["s1"], "extraction_method": "llm"},
			{"id": "b", "name": "Acme", "type": "ORGANIZATION", "confidence": 0.5, "source_ids": []}
		]`))
	}), nil)

	snap, err := c.FetchEntities(context.Background(), source.Filter{Name: " ada ", Type: "person", Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, "entity_type=PERSON&limit=500&name=ada&objective_id=obj-1", gotQuery)

	require.Len(t, snap.Nodes, 2)
	assert.Empty(t, snap.Edges)
	assert.Equal(t, "Ada", snap.Nodes[0].Label)
	assert.Equal(t, kg.Person, snap.Nodes[0].Type)
	conf, ok := snap.Nodes[0].Attrs.Conf()
	require.True(t, ok)
	assert.InDelta(t, 0.873, conf, 1e-12)
	assert.Equal(t, []string{"s1"}, snap.Nodes[0].Attrs.SourceIDs)
	assert.Equal(t, "llm", snap.Nodes[0].Attrs.Extra["extraction_method"])
}

func TestFetchNeighborhood(t *testing.T) {
	var depth string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/graph/entities/a%2Fb/neighborhood", r.URL.EscapedPath())
		depth = r.URL.Query().Get("depth")
		_, _ = w.Write([]byte(neighborhoodJSON))
	}), nil)

	snap, err := c.FetchNeighborhood(context.Background(), "a/b", 9)
	require.NoError(t, err)
	assert.Equal(t, "3", depth)
	require.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "WORKS_AT", snap.Edges[0].Label)

	_, err = c.FetchNeighborhood(context.Background(), "", 2)
	assert.ErrorIs(t, err, kg.ErrInvalidInput)
}

func TestFetchStats(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/graph/statistics/obj-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"total_entities": 3, "total_relationships": 2,
			"entity_type_counts": {"PERSON": 2, "CONCEPT": 1}, "relationship_type_counts": {"KNOWS": 2}}`))
	}), nil)

	st, err := c.FetchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalEntities)
	assert.Equal(t, 2, st.EntityTypeCounts["PERSON"])

	c2 := newClient(t, http.NotFoundHandler(), func(cfg *Config) { cfg.ObjectiveID = "" })
	_, err = c2.FetchStats(context.Background())
	assert.ErrorIs(t, err, kg.ErrInvalidInput)
}

func TestStatusError(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Entity not found"}`))
	}), nil)

	_, err := c.FetchNeighborhood(context.Background(), "missing", 2)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "Entity not found", se.Body)
}

func TestCacheServesRepeatedRequests(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(neighborhoodJSON))
	}), nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.FetchNeighborhood(ctx, "a", 2)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int64(2), c.CacheStats().Hits)

	// A different depth is a different key.
	_, err := c.FetchNeighborhood(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	assert.Equal(t, 2, c.Invalidate(""))
	_, err = c.FetchNeighborhood(ctx, "a", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestInvalidateByScope(t *testing.T) {
	var entityHits, hoodHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/graph/entities", func(w http.ResponseWriter, r *http.Request) {
		entityHits.Add(1)
		_, _ = w.Write([]byte(`[{"id": "a", "name": "Ada", "type": "PERSON"}]`))
	})
	mux.HandleFunc("/api/v1/graph/entities/a/neighborhood", func(w http.ResponseWriter, r *http.Request) {
		hoodHits.Add(1)
		_, _ = w.Write([]byte(neighborhoodJSON))
	})
	c := newClient(t, mux, func(cfg *Config) { cfg.CacheStrategy = cache.LFU })

	ctx := context.Background()
	fetchBoth := func() {
		_, err := c.FetchEntities(ctx, source.Filter{})
		require.NoError(t, err)
		_, err = c.FetchNeighborhood(ctx, "a", 2)
		require.NoError(t, err)
	}
	fetchBoth()
	fetchBoth()
	assert.Equal(t, int32(1), entityHits.Load())
	assert.Equal(t, int32(1), hoodHits.Load())

	assert.Equal(t, 1, c.Invalidate(source.ScopeNeighborhood))
	fetchBoth()
	assert.Equal(t, int32(1), entityHits.Load(), "entities stay cached")
	assert.Equal(t, int32(2), hoodHits.Load())

	assert.Equal(t, 1, c.Invalidate(source.ScopeEntities))
	fetchBoth()
	assert.Equal(t, int32(2), entityHits.Load())
	assert.Equal(t, int32(2), hoodHits.Load())
}

func TestErrorsAreNotCached(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(neighborhoodJSON))
	}), nil)

	_, err := c.FetchNeighborhood(context.Background(), "a", 2)
	require.Error(t, err)
	snap, err := c.FetchNeighborhood(context.Background(), "a", 2)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)
}

func TestConcurrentRequestsShareOneFetch(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(neighborhoodJSON))
	}), func(cfg *Config) { cfg.CacheTTL = -1 })

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchNeighborhood(context.Background(), "a", 2)
			errs <- err
		}()
	}
	// Let every caller join the flight before the server answers.
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestCancelledCallerReturnsPromptly(t *testing.T) {
	release := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(neighborhoodJSON))
	}), nil)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.FetchNeighborhood(ctx, "a", 2)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled fetch did not return")
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), func(cfg *Config) {
		cfg.CacheTTL = -1
		cfg.Breaker = BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 3}
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.FetchEntities(ctx, source.Filter{})
		require.Error(t, err)
	}
	_, err := c.FetchEntities(ctx, source.Filter{})
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	assert.True(t, isSuccessful(nil))
	assert.True(t, isSuccessful(&StatusError{Code: 404}))
	assert.True(t, isSuccessful(context.Canceled))
	assert.False(t, isSuccessful(&StatusError{Code: 503}))
	assert.False(t, isSuccessful(errors.New("connection refused")))
}
