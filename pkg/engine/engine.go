// Package engine mounts the graph viewer: it owns the tick loop, the layout,
// the viewport, gesture handling and exploration, and publishes one render
// frame per tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/recera/kgview/pkg/explore"
	"github.com/recera/kgview/pkg/interaction"
	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/layout"
	"github.com/recera/kgview/pkg/render"
	"github.com/recera/kgview/pkg/scheduler"
	"github.com/recera/kgview/pkg/source"
	"github.com/recera/kgview/pkg/viewport"
)

// ErrNotMounted is returned by operations that need a mounted engine.
var ErrNotMounted = errors.New("engine not mounted")

// Options configures an Engine.
type Options struct {
	Width  float64 // default 800
	Height float64 // default 600

	// OnNodeClick and OnError run on the tick goroutine.
	OnNodeClick func(id string)
	OnError     func(error)

	TickInterval time.Duration // default 1/60 s
	// Manual disables the loop goroutine; the caller drives Step.
	Manual bool

	Filter      source.Filter // initial full-view filter
	Depth       int           // neighborhood depth, default 2
	Layout      *layout.Options
	Interaction *interaction.Options
	Logger      *zap.Logger
}

func (o *Options) withDefaults() (Options, error) {
	d := Options{Width: 800, Height: 600, Logger: zap.NewNop()}
	if o == nil {
		return d, nil
	}
	d = *o
	if d.Width < 0 || d.Height < 0 {
		return d, kg.InvalidInput("engine options", "width and height must be positive, got %vx%v", o.Width, o.Height)
	}
	if d.Width == 0 {
		d.Width = 800
	}
	if d.Height == 0 {
		d.Height = 600
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d, nil
}

// Engine is a mounted graph viewer. Hosts talk to it through Dispatch,
// Select, Reset, Search and Frame; all state changes happen on the tick
// goroutine.
type Engine struct {
	opts Options
	log  *zap.Logger
	src  source.Source
	loop *scheduler.Loop

	// Owned by the tick goroutine.
	sim      *layout.Simulation
	view     viewport.Transform
	ctl      *interaction.Controller
	exp      *explore.Explorer
	snap     kg.Snapshot
	selected string
	lastErr  error
	dirty    bool
	seq      uint64

	frame atomic.Pointer[render.Frame]

	subMu  sync.Mutex
	subs   map[int]chan *render.Frame
	nextID int

	ctx     context.Context
	cancel  context.CancelFunc
	fetches sync.WaitGroup
	mounted atomic.Bool
	closed  atomic.Bool
}

// New creates an unmounted engine reading from src.
func New(src source.Source, opts *Options) (*Engine, error) {
	if src == nil {
		return nil, kg.InvalidInput("engine", "nil source")
	}
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	lo := layout.Options{}
	if o.Layout != nil {
		lo = *o.Layout
	}
	lo.Width, lo.Height = o.Width, o.Height

	e := &Engine{
		opts: o,
		log:  o.Logger,
		src:  src,
		sim:  layout.NewSimulation(&lo),
		view: viewport.Identity(),
		subs: make(map[int]chan *render.Frame),
	}
	e.ctl = interaction.New(e.sim, &e.view, e.nodeClicked, o.Interaction)
	e.loop = scheduler.New(e.tick, o.TickInterval)
	e.loop.SetErrorHandler(func(r any, stack []byte) {
		tickPanics.Inc()
		e.log.Error("recovered panic in tick loop",
			zap.Any("panic", r),
			zap.ByteString("stack", stack))
	})
	e.publish()
	return e, nil
}

// Mount starts the engine: the initial full-view fetch is issued and, unless
// Manual is set, the tick loop begins. ctx bounds every fetch.
func (e *Engine) Mount(ctx context.Context) error {
	if e.closed.Load() {
		return fmt.Errorf("mount: %w", ErrNotMounted)
	}
	if !e.mounted.CompareAndSwap(false, true) {
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.exp = explore.New(e.ctx, e.src, &explore.Options{Depth: e.opts.Depth, Logger: e.log.Named("explore")})

	filter := e.opts.Filter
	e.loop.Post(func() { e.fetch(e.exp.Start(filter)) })
	if !e.opts.Manual {
		e.loop.Start()
	}
	e.log.Info("engine mounted",
		zap.Float64("width", e.opts.Width),
		zap.Float64("height", e.opts.Height),
		zap.Bool("manual", e.opts.Manual))
	return nil
}

// Unmount stops the loop, cancels the in-flight fetch and discards any
// result that arrives later. Subscribers' channels are closed.
func (e *Engine) Unmount() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.loop.Stop()
	if e.cancel != nil {
		e.cancel()
	}
	if e.exp != nil {
		e.exp.Close()
	}
	e.fetches.Wait()

	e.subMu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.subMu.Unlock()
	e.log.Info("engine unmounted", zap.Uint64("ticks", e.loop.Ticks()))
}

// Step runs one tick on the calling goroutine. Only valid in Manual mode.
func (e *Engine) Step() {
	e.loop.Step(time.Now())
}

// Frame returns the latest frame. It is safe to call from any goroutine.
func (e *Engine) Frame() *render.Frame {
	return e.frame.Load()
}

// Subscribe returns a channel that receives the newest frame after each
// tick that changed something. Slow readers only see the latest frame.
func (e *Engine) Subscribe() (<-chan *render.Frame, func()) {
	ch := make(chan *render.Frame, 1)
	e.subMu.Lock()
	if e.closed.Load() {
		e.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
			e.subMu.Unlock()
		})
	}
}

// Dispatch queues a pointer event for the next tick.
func (e *Engine) Dispatch(ev interaction.Event) bool {
	return e.loop.Post(func() {
		if e.ctl.Handle(ev) {
			e.dirty = true
		}
	})
}

// Select switches to the neighborhood of id.
func (e *Engine) Select(id string) bool {
	return e.post(func() { e.selectNode(id) })
}

// Reset returns to the full view with the previous filter.
func (e *Engine) Reset() bool {
	return e.post(func() { e.fetch(e.exp.Reset()) })
}

// Search returns to the full view with a new filter.
func (e *Engine) Search(f source.Filter) bool {
	return e.post(func() { e.fetch(e.exp.Search(f)) })
}

// Refresh re-fetches the current view. A caching source first drops its
// cached results for the view's query family.
func (e *Engine) Refresh() bool {
	return e.post(func() {
		if inv, ok := e.src.(source.Invalidator); ok {
			scope := e.exp.State().Scope()
			n := inv.Invalidate(scope)
			e.log.Debug("cache invalidated for refresh", zap.String("scope", scope), zap.Int("entries", n))
		}
		e.fetch(e.exp.Refresh())
	})
}

// Load installs a snapshot directly, bypassing the source.
func (e *Engine) Load(s kg.Snapshot) bool {
	return e.loop.Post(func() {
		snap, dropped := kg.Ingest(s)
		e.logDropped(dropped)
		e.install(snap)
	})
}

// Resize changes the scene size. Non-positive values are ignored.
func (e *Engine) Resize(width, height float64) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	return e.loop.Post(func() {
		e.opts.Width, e.opts.Height = width, height
		e.sim.Resize(width, height)
		if e.sim.Settled() {
			e.sim.Reheat(e.sim.Options().Reheat)
			e.sim.Cool()
		}
		e.dirty = true
	})
}

// Zoom scales the view around the scene center.
func (e *Engine) Zoom(factor float64) bool {
	return e.loop.Post(func() {
		e.view.ZoomAt(e.opts.Width/2, e.opts.Height/2, factor)
		e.dirty = true
	})
}

// Pan translates the view by a screen-space delta.
func (e *Engine) Pan(dx, dy float64) bool {
	return e.loop.Post(func() {
		e.view.Pan(dx, dy)
		e.dirty = true
	})
}

// Fit scales the view so every node is visible.
func (e *Engine) Fit(padding float64) bool {
	return e.loop.Post(func() {
		minX, minY, maxX, maxY, ok := e.sim.Model().Bounds()
		if !ok {
			return
		}
		e.view.Fit(minX, minY, maxX, maxY, e.opts.Width, e.opts.Height, padding)
		e.dirty = true
	})
}

// Focus centers the view on a node at scale k (0 keeps the current scale).
func (e *Engine) Focus(id string, k float64) bool {
	return e.loop.Post(func() {
		b, ok := e.sim.Model().Body(id)
		if !ok {
			return
		}
		e.view.Focus(b.X, b.Y, e.opts.Width, e.opts.Height, k)
		e.dirty = true
	})
}

// ResetView restores the identity transform.
func (e *Engine) ResetView() bool {
	return e.loop.Post(func() {
		e.view.Reset()
		e.dirty = true
	})
}

// Stats fetches graph statistics when the source supports them.
func (e *Engine) Stats(ctx context.Context) (kg.Stats, error) {
	ss, ok := e.src.(source.StatsSource)
	if !ok {
		return kg.Stats{}, fmt.Errorf("stats: source %T does not provide statistics", e.src)
	}
	st, err := ss.FetchStats(ctx)
	if err != nil {
		return kg.Stats{}, kg.FetchError("fetch stats", err)
	}
	return st, nil
}

// Settle drives a Manual engine until the outstanding fetch has resolved and
// the layout has cooled, or maxTicks ticks have run after the fetch.
func (e *Engine) Settle(ctx context.Context, maxTicks int) error {
	if !e.mounted.Load() || e.closed.Load() {
		return ErrNotMounted
	}
	for {
		e.Step()
		if e.exp != nil && !e.exp.Loading() && e.loop.Pending() == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	for i := 0; i < maxTicks && !e.sim.Settled(); i++ {
		e.Step()
	}
	return nil
}

func (e *Engine) post(fn func()) bool {
	if !e.mounted.Load() {
		return false
	}
	return e.loop.Post(fn)
}

// tick runs on the loop goroutine.
func (e *Engine) tick(time.Time) {
	tickTotal.Inc()
	if e.sim.Step() || e.dirty {
		e.dirty = false
		e.publish()
	}
}

func (e *Engine) nodeClicked(id string) {
	if e.opts.OnNodeClick != nil {
		e.opts.OnNodeClick(id)
	}
	e.selectNode(id)
}

func (e *Engine) selectNode(id string) {
	req, err := e.exp.Select(id)
	if err != nil {
		e.report(err)
		return
	}
	e.selected = id
	e.fetch(req)
}

func (e *Engine) fetch(req explore.Request) {
	e.dirty = true
	mode := req.State.Mode.String()
	e.fetches.Add(1)
	go func() {
		defer e.fetches.Done()
		start := time.Now()
		res := e.exp.Fetch(req)
		fetchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		result := "ok"
		if res.Err != nil {
			result = "error"
		}
		fetchTotal.WithLabelValues(mode, result).Inc()
		if !e.loop.Post(func() { e.resolve(res) }) {
			e.log.Debug("dropping fetch result after unmount", zap.Uint64("gen", res.Gen))
		}
	}()
}

func (e *Engine) resolve(res explore.Result) {
	out := e.exp.Resolve(res)
	e.dirty = true
	switch {
	case out.Stale:
		staleResults.Inc()
	case out.Err != nil:
		e.report(out.Err)
	case out.Installed:
		droppedEdges.Add(float64(len(out.Dropped)))
		e.install(out.Snapshot)
	}
}

// install replaces the snapshot and restarts the layout from scratch.
func (e *Engine) install(s kg.Snapshot) {
	e.snap = s
	e.lastErr = nil
	e.sim.Load(s)
	e.ctl.Reset()
	if e.exp != nil && e.exp.State().Mode == explore.NeighborhoodView {
		e.selected = e.exp.State().EntityID
	} else {
		e.selected = ""
	}
	installedNodes.Observe(float64(len(s.Nodes)))
	if s.Empty() {
		e.log.Info("installed empty snapshot", zap.Error(&kg.Error{Kind: kg.KindEmptyGraph, Op: "install"}))
	} else {
		e.log.Debug("installed snapshot", zap.Int("nodes", len(s.Nodes)), zap.Int("edges", len(s.Edges)))
	}
	e.dirty = true
}

func (e *Engine) report(err error) {
	e.lastErr = err
	e.dirty = true
	if e.opts.OnError != nil {
		e.opts.OnError(err)
	}
}

func (e *Engine) logDropped(dropped []*kg.MalformedEdgeError) {
	droppedEdges.Add(float64(len(dropped)))
	for _, d := range dropped {
		e.log.Warn("dropping malformed edge", zap.Error(d))
	}
}

// publish builds a frame and hands it to readers.
func (e *Engine) publish() {
	e.seq++
	st := render.Status{}
	if e.exp != nil {
		st.Mode = e.exp.State().String()
		st.Loading = e.exp.Loading()
	}
	if e.lastErr != nil {
		st.Err = e.lastErr.Error()
	}
	f := render.Build(render.Input{
		Seq:       e.seq,
		Width:     e.opts.Width,
		Height:    e.opts.Height,
		Positions: e.sim.Model().Positions(),
		Snapshot:  e.snap,
		Transform: e.view,
		Hover:     e.ctl.Hover(),
		Selected:  e.selected,
		Status:    st,
		Alpha:     e.sim.Alpha(),
	})
	e.frame.Store(f)

	e.subMu.Lock()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- f:
		default:
		}
	}
	e.subMu.Unlock()
}
