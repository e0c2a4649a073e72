// Package filesource serves graph snapshots from a YAML fixture file. It
// backs the headless render command, offline demos and tests, and can watch
// the file for edits.
package filesource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/source"
)

// ErrNotFound is returned for a neighborhood of an unknown entity.
var ErrNotFound = errors.New("entity not found")

// debounceDelay coalesces the burst of events editors emit on save.
const debounceDelay = 100 * time.Millisecond

// Options configures a Source.
type Options struct {
	// Latency delays every fetch; the delay honors ctx cancellation.
	Latency time.Duration
	Logger  *zap.Logger
}

// Source is an in-memory graph, optionally loaded from a file.
type Source struct {
	mu   sync.RWMutex
	snap kg.Snapshot
	adj  map[string][]string
	path string
	opts Options
	log  *zap.Logger
}

var (
	_ source.Source      = (*Source)(nil)
	_ source.StatsSource = (*Source)(nil)
)

// New serves snap from memory.
func New(snap kg.Snapshot, opts *Options) *Source {
	s := &Source{}
	s.init(opts)
	s.set(snap)
	return s
}

// Open loads the fixture at path.
func Open(path string, opts *Options) (*Source, error) {
	s := &Source{path: path}
	s.init(opts)
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) init(opts *Options) {
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.Logger == nil {
		s.opts.Logger = zap.NewNop()
	}
	s.log = s.opts.Logger.Named("filesource")
}

// Parse decodes a fixture. JSON fixtures parse as well.
func Parse(data []byte) (kg.Snapshot, error) {
	var snap kg.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return kg.Snapshot{}, fmt.Errorf("parse fixture: %w", err)
	}
	return snap, nil
}

// Reload re-reads the fixture file. On error the previous graph is kept.
func (s *Source) Reload() error {
	if s.path == "" {
		return kg.InvalidInput("Reload", "source has no file")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	snap = s.set(snap)
	s.log.Info("fixture loaded",
		zap.String("path", s.path),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)))
	return nil
}

// Path returns the fixture path, empty for in-memory sources.
func (s *Source) Path() string { return s.path }

// Snapshot returns the whole graph.
func (s *Source) Snapshot() kg.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// set installs the ingested graph: edges with a missing endpoint are dropped
// so neither traversal nor stats can reach an id that is not a node.
func (s *Source) set(raw kg.Snapshot) kg.Snapshot {
	snap, dropped := kg.Ingest(raw)
	for _, d := range dropped {
		s.log.Warn("dropping malformed edge",
			zap.String("source", d.Edge.Source),
			zap.String("target", d.Edge.Target),
			zap.String("label", d.Edge.Label),
			zap.String("missing", d.Missing))
	}

	adj := make(map[string][]string, len(snap.Nodes))
	for _, e := range snap.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		if e.Target != e.Source {
			adj[e.Target] = append(adj[e.Target], e.Source)
		}
	}
	s.mu.Lock()
	s.snap = snap
	s.adj = adj
	s.mu.Unlock()
	return snap
}

func (s *Source) wait(ctx context.Context) error {
	if s.opts.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FetchEntities returns the nodes matching f, in file order, without edges.
func (s *Source) FetchEntities(ctx context.Context, f source.Filter) (kg.Snapshot, error) {
	if err := s.wait(ctx); err != nil {
		return kg.Snapshot{}, err
	}
	f = f.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out kg.Snapshot
	for _, n := range s.snap.Nodes {
		if len(out.Nodes) == f.Limit {
			break
		}
		if f.Matches(n) {
			out.Nodes = append(out.Nodes, n)
		}
	}
	return out, nil
}

// FetchNeighborhood returns every node within depth hops of entityID, edges
// followed in either direction, and the edges between those nodes.
func (s *Source) FetchNeighborhood(ctx context.Context, entityID string, depth int) (kg.Snapshot, error) {
	if err := s.wait(ctx); err != nil {
		return kg.Snapshot{}, err
	}
	depth = source.ClampDepth(depth)

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := false
	for _, n := range s.snap.Nodes {
		if n.ID == entityID {
			found = true
			break
		}
	}
	if !found {
		return kg.Snapshot{}, fmt.Errorf("%w: %q", ErrNotFound, entityID)
	}

	seen := map[string]bool{entityID: true}
	frontier := []string{entityID}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, nb := range s.adj[id] {
				if !seen[nb] {
					seen[nb] = true
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}

	var out kg.Snapshot
	for _, n := range s.snap.Nodes {
		if seen[n.ID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range s.snap.Edges {
		if seen[e.Source] && seen[e.Target] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out, nil
}

// FetchStats counts entities per type and relationships per label.
func (s *Source) FetchStats(ctx context.Context) (kg.Stats, error) {
	if err := ctx.Err(); err != nil {
		return kg.Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := kg.Stats{
		TotalEntities:          len(s.snap.Nodes),
		TotalRelationships:     len(s.snap.Edges),
		EntityTypeCounts:       make(map[string]int),
		RelationshipTypeCounts: make(map[string]int),
	}
	for _, n := range s.snap.Nodes {
		st.EntityTypeCounts[string(n.Type)]++
	}
	for _, e := range s.snap.Edges {
		st.RelationshipTypeCounts[e.Label]++
	}
	return st, nil
}

// Watch reloads the fixture whenever it changes and calls onReload after
// each successful reload. It blocks until ctx is done. The parent directory
// is watched so editors that replace the file on save are followed.
func (s *Source) Watch(ctx context.Context, onReload func()) error {
	if s.path == "" {
		return kg.InvalidInput("Watch", "source has no file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(abs) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(debounceDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", zap.Error(err))

		case <-debounce.C:
			if err := s.Reload(); err != nil {
				s.log.Warn("fixture reload failed", zap.Error(err))
				continue
			}
			if onReload != nil {
				onReload()
			}
		}
	}
}
