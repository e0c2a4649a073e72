package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:8080", cfg.Server.Addr())
	assert.Equal(t, time.Second/60, cfg.Viewer.TickInterval())
}

func TestLoadMissingDefaultFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: DEBUG
source:
  kind: file
  file: fixtures/graph.yaml
  latency: 250ms
server:
  port: 9090
viewer:
  depth: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "fixtures/graph.yaml"), cfg.Source.File)
	assert.Equal(t, 250*time.Millisecond, cfg.Source.Latency)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 3, cfg.Viewer.Depth)
	assert.Equal(t, 100, cfg.Viewer.Limit)
	assert.Equal(t, 800.0, cfg.Viewer.Width)
	assert.Equal(t, 10*time.Second, cfg.Source.HTTP.Timeout)
	assert.Equal(t, 0.8, cfg.Source.HTTP.Breaker.FailureThreshold)
}

func TestParseHTTPSource(t *testing.T) {
	cfg, err := Parse([]byte(`
source:
  kind: http
  http:
    base_url: http://localhost:8000
    objective_id: 3f1c
    cache_ttl: 1m
    cache_strategy: LFU
`))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.Source.HTTP.BaseURL)
	assert.Equal(t, time.Minute, cfg.Source.HTTP.CacheTTL)
	assert.Equal(t, "lfu", cfg.Source.HTTP.CacheStrategy)
	assert.Equal(t, 5, cfg.Source.HTTP.Burst)

	_, err = Parse([]byte(`
source:
  kind: http
  http:
    base_url: http://localhost:8000
    cache_strategy: random
`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad level", "log: {level: loud}"},
		{"bad kind", "source: {kind: ftp}"},
		{"http without url", "source: {kind: http}"},
		{"bad url", "source: {kind: http, http: {base_url: 'not a url'}}"},
		{"depth too deep", "viewer: {depth: 4}"},
		{"limit too large", "viewer: {limit: 501}"},
		{"negative width", "viewer: {width: -1}"},
		{"port out of range", "server: {port: 70000}"},
		{"threshold above one", "source: {http: {breaker: {failure_threshold: 2}}}"},
		{"malformed yaml", "viewer: [1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadExampleConfig(t *testing.T) {
	path := filepath.Join("..", "..", "..", "..", "kgview.example.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Source.Kind)
	assert.True(t, cfg.Source.Watch)
	assert.Equal(t, filepath.Join("..", "..", "..", "..", "testdata", "graph.yaml"), cfg.Source.File)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 1200.0, cfg.Viewer.Width)
	assert.Equal(t, 300, cfg.Viewer.Ticks)
}
