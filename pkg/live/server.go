// Package live serves the graph viewer to browsers: each websocket session
// mounts its own engine, receives the SVG of every changed frame and sends
// pointer events and control commands back.
package live

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/recera/kgview/pkg/engine"
	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/render"
	"github.com/recera/kgview/pkg/source"
)

// ErrTooManySessions is returned when MaxSessions are already connected.
var ErrTooManySessions = errors.New("too many live sessions")

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "kgview_live_sessions",
	Help: "Connected websocket sessions",
})

// Options configures a Server.
type Options struct {
	Source source.Source
	// Engine is the template for every session's engine. Width and Height
	// are the initial canvas size until the page reports its own.
	Engine engine.Options

	MaxSessions int // default 64
	// RenderTicks is the number of ticks /frame.svg runs. Default 300.
	RenderTicks int
	// CheckOrigin overrides the websocket origin check. The default accepts
	// same-host origins only.
	CheckOrigin func(r *http.Request) bool

	Logger *zap.Logger
}

// Server handles WebSocket connections for live updates
type Server struct {
	opts     Options
	log      *zap.Logger
	upgrader websocket.Upgrader
	sessions map[string]*Session
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a live server reading from opts.Source.
func NewServer(opts Options) (*Server, error) {
	if opts.Source == nil {
		return nil, kg.InvalidInput("live.NewServer", "nil source")
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 64
	}
	if opts.RenderTicks <= 0 {
		opts.RenderTicks = 300
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts: opts,
		log:  opts.Logger.Named("live"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     opts.CheckOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Routes returns the HTTP handler of the browser host.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/", s.handlePage)
	r.Get("/live/{session}", s.HandleWebSocket)
	r.Get("/frame.svg", s.handleFrame)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// HandleWebSocket upgrades the request and runs a session until the socket
// closes. A second connection with the same session id replaces the first.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	s.mu.RLock()
	_, replacing := s.sessions[id]
	full := !replacing && len(s.sessions) >= s.opts.MaxSessions
	s.mu.RUnlock()
	if full {
		http.Error(w, ErrTooManySessions.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", zap.String("session", id), zap.Error(err))
		return
	}

	sess, err := s.newSession(id, conn)
	if err != nil {
		s.log.Error("failed to start session", zap.String("session", id), zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "engine failed to start"))
		conn.Close()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.run()
		s.removeSession(sess)
	}()
}

func (s *Server) newSession(id string, conn *websocket.Conn) (*Session, error) {
	opts := s.opts.Engine
	opts.Manual = false
	opts.Logger = s.log.With(zap.String("session", id))
	eng, err := engine.New(s.opts.Source, &opts)
	if err != nil {
		return nil, err
	}
	if err := eng.Mount(s.ctx); err != nil {
		return nil, err
	}
	sess := newSession(id, conn, eng, opts.Logger)

	s.mu.Lock()
	old := s.sessions[id]
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	activeSessions.Set(float64(n))

	if old != nil {
		s.log.Info("session replaced by new connection", zap.String("session", id))
		old.close()
	}
	return sess, nil
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	if s.sessions[sess.ID] == sess {
		delete(s.sessions, sess.ID)
	}
	n := len(s.sessions)
	s.mu.Unlock()
	activeSessions.Set(float64(n))
}

// GetSession retrieves a session by ID
func (s *Server) GetSession(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Refresh re-runs the current query of every session, e.g. after the data
// behind the source changed.
func (s *Server) Refresh() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		sess.eng.Refresh()
	}
}

// Close disconnects every session and waits for their engines to unmount.
func (s *Server) Close() {
	s.cancel()
	s.mu.RLock()
	for _, sess := range s.sessions {
		sess.close()
	}
	s.mu.RUnlock()
	s.wg.Wait()
}

// handleFrame lays out a graph headlessly and returns it as SVG. Query
// parameters: entity, depth, name, type, limit, width, height, ticks.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := s.opts.Engine
	opts.Manual = true
	opts.Logger = s.log
	opts.OnNodeClick, opts.OnError = nil, nil
	opts.Filter = source.Filter{Name: q.Get("name"), Type: kg.EntityType(q.Get("type")), Limit: intParam(q.Get("limit"), opts.Filter.Limit)}
	if d := intParam(q.Get("depth"), 0); d != 0 {
		opts.Depth = d
	}
	if v := floatParam(q.Get("width")); v > 0 {
		opts.Width = v
	}
	if v := floatParam(q.Get("height")); v > 0 {
		opts.Height = v
	}
	ticks := intParam(q.Get("ticks"), s.opts.RenderTicks)
	if ticks <= 0 || ticks > 10*s.opts.RenderTicks {
		ticks = s.opts.RenderTicks
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	f, err := RenderFrame(ctx, s.opts.Source, &opts, q.Get("entity"), ticks)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, kg.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	svg, err := render.RenderSVG(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write([]byte(svg))
}

// RenderFrame mounts a manual engine, loads the full view (or the
// neighborhood of entityID), runs up to ticks ticks and returns the last
// frame.
func RenderFrame(ctx context.Context, src source.Source, opts *engine.Options, entityID string, ticks int) (*render.Frame, error) {
	o := engine.Options{}
	if opts != nil {
		o = *opts
	}
	o.Manual = true
	eng, err := engine.New(src, &o)
	if err != nil {
		return nil, err
	}
	if err := eng.Mount(ctx); err != nil {
		return nil, err
	}
	defer eng.Unmount()

	if entityID != "" {
		// Settle the initial fetch first so the selection is not cancelled.
		if err := eng.Settle(ctx, 1); err != nil {
			return nil, err
		}
		eng.Select(entityID)
	}
	if err := eng.Settle(ctx, ticks); err != nil {
		return nil, err
	}
	return eng.Frame(), nil
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func floatParam(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// requestLogger logs one line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())))
		})
	}
}
