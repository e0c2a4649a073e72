// Package explore is the state machine that decides which snapshot the
// engine shows: the filtered full view or the neighborhood of a selected
// entity.
package explore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/source"
)

// Mode is the exploration mode.
type Mode uint8

const (
	FullView Mode = iota
	NeighborhoodView
)

func (m Mode) String() string {
	switch m {
	case FullView:
		return "full"
	case NeighborhoodView:
		return "neighborhood"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// State is the current view. Filter is kept while in NeighborhoodView so a
// reset can re-apply it.
type State struct {
	Mode     Mode
	Filter   source.Filter
	EntityID string
	Depth    int
}

func (s State) String() string {
	if s.Mode == NeighborhoodView {
		return fmt.Sprintf("neighborhood(%s, depth %d)", s.EntityID, s.Depth)
	}
	return fmt.Sprintf("full(name=%q type=%q limit=%d)", s.Filter.Name, s.Filter.Type, s.Filter.Limit)
}

// Scope names the query family that serves s, for cache invalidation.
func (s State) Scope() string {
	if s.Mode == NeighborhoodView {
		return source.ScopeNeighborhood
	}
	return source.ScopeEntities
}

// Request is a fetch issued by a transition. Gen identifies it; only the
// newest generation may install a snapshot.
type Request struct {
	Gen   uint64
	State State
	ctx   context.Context
}

// Context returns the request's cancellation context.
func (r Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// Result is the completion of a Request.
type Result struct {
	Gen      uint64
	Snapshot kg.Snapshot
	Err      error
}

// Outcome tells the caller what Resolve did with a result.
type Outcome struct {
	Installed bool
	Stale     bool
	Snapshot  kg.Snapshot
	Dropped   []*kg.MalformedEdgeError
	Err       error
}

// Options configures an Explorer.
type Options struct {
	Depth  int // neighborhood depth, default 2
	Logger *zap.Logger
}

// Explorer tracks the exploration state. All methods except Fetch must be
// called from the same goroutine.
type Explorer struct {
	src    source.Source
	log    *zap.Logger
	depth  int
	parent context.Context

	state   State
	gen     uint64
	cancel  context.CancelFunc
	current kg.Snapshot
	loading bool
	lastErr error
}

// New creates an explorer in FullView with the default filter. parent bounds
// the lifetime of every fetch.
func New(parent context.Context, src source.Source, opts *Options) *Explorer {
	e := &Explorer{
		src:    src,
		log:    zap.NewNop(),
		depth:  source.DefaultDepth,
		parent: parent,
		state:  State{Mode: FullView, Filter: source.Filter{}.Normalize()},
	}
	if opts != nil {
		if opts.Logger != nil {
			e.log = opts.Logger
		}
		e.depth = source.ClampDepth(opts.Depth)
	}
	if e.parent == nil {
		e.parent = context.Background()
	}
	return e
}

// Start issues the initial full-view fetch with filter f.
func (e *Explorer) Start(f source.Filter) Request {
	return e.transition(State{Mode: FullView, Filter: f.Normalize()})
}

// Select switches to the neighborhood of id. It is allowed from either mode.
func (e *Explorer) Select(id string) (Request, error) {
	if id == "" {
		return Request{}, kg.InvalidInput("select", "empty entity id")
	}
	return e.transition(State{
		Mode:     NeighborhoodView,
		Filter:   e.state.Filter,
		EntityID: id,
		Depth:    e.depth,
	}), nil
}

// Reset returns to the full view with the previous filter.
func (e *Explorer) Reset() Request {
	return e.transition(State{Mode: FullView, Filter: e.state.Filter})
}

// Search returns to the full view with a new filter.
func (e *Explorer) Search(f source.Filter) Request {
	return e.transition(State{Mode: FullView, Filter: f.Normalize()})
}

// Refresh re-fetches the current state.
func (e *Explorer) Refresh() Request {
	return e.transition(e.state)
}

func (e *Explorer) transition(next State) Request {
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	ctx, cancel := context.WithCancel(e.parent)
	e.cancel = cancel
	e.state = next
	e.loading = true
	e.log.Debug("explore transition",
		zap.Uint64("gen", e.gen),
		zap.Stringer("state", next))
	return Request{Gen: e.gen, State: next, ctx: ctx}
}

// Fetch performs a request against the source. It may run on any goroutine.
func (e *Explorer) Fetch(req Request) Result {
	ctx := req.Context()
	var (
		snap kg.Snapshot
		err  error
	)
	switch req.State.Mode {
	case NeighborhoodView:
		snap, err = e.src.FetchNeighborhood(ctx, req.State.EntityID, req.State.Depth)
	default:
		snap, err = e.src.FetchEntities(ctx, req.State.Filter)
	}
	if err == nil {
		err = ctx.Err()
	}
	return Result{Gen: req.Gen, Snapshot: snap, Err: err}
}

// Resolve applies a fetch result. Results from older generations are
// discarded. A failure keeps the current snapshot and records a DataFetch
// error. A success is ingested and becomes the current snapshot; full-view
// snapshots lose their edges.
func (e *Explorer) Resolve(res Result) Outcome {
	if res.Gen != e.gen {
		e.log.Debug("discarding stale result", zap.Uint64("gen", res.Gen), zap.Uint64("current", e.gen))
		return Outcome{Stale: true}
	}
	e.loading = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	if res.Err != nil {
		err := kg.FetchError(e.op(), res.Err)
		if errors.Is(res.Err, context.Canceled) {
			e.log.Debug("fetch canceled", zap.Stringer("state", e.state))
		} else {
			e.log.Warn("fetch failed", zap.Stringer("state", e.state), zap.Error(res.Err))
		}
		e.lastErr = err
		return Outcome{Err: err}
	}

	snap := res.Snapshot
	if e.state.Mode == FullView {
		snap = snap.WithoutEdges()
	}
	snap, dropped := kg.Ingest(snap)
	for _, d := range dropped {
		e.log.Warn("dropping malformed edge",
			zap.String("source", d.Edge.Source),
			zap.String("target", d.Edge.Target),
			zap.String("missing", d.Missing))
	}
	e.current = snap
	e.lastErr = nil
	return Outcome{Installed: true, Snapshot: snap, Dropped: dropped}
}

func (e *Explorer) op() string {
	if e.state.Mode == NeighborhoodView {
		return "fetch neighborhood " + e.state.EntityID
	}
	return "fetch entities"
}

// Close cancels the in-flight fetch and invalidates any later result.
func (e *Explorer) Close() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	e.loading = false
}

// State returns the current state.
func (e *Explorer) State() State { return e.state }

// Generation returns the newest request generation.
func (e *Explorer) Generation() uint64 { return e.gen }

// Loading reports whether the newest request is still outstanding.
func (e *Explorer) Loading() bool { return e.loading }

// Err returns the error of the last failed fetch, cleared by the next
// success.
func (e *Explorer) Err() error { return e.lastErr }

// Current returns the installed snapshot.
func (e *Explorer) Current() kg.Snapshot { return e.current }
