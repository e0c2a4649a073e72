// Package httpsource fetches graph snapshots from the knowledge-graph HTTP
// API. Requests are rate limited, guarded by a circuit breaker, deduplicated
// while in flight and cached for a short time.
package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/recera/kgview/internal/cache"
	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/source"
)

// APIPrefix is prepended to every route.
const APIPrefix = "/api/v1"

// maxBody bounds how much of a response body is read.
const maxBody = 16 << 20

// BreakerConfig configures the circuit breaker in front of the API.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// DefaultBreakerConfig returns the default breaker settings
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Config holds the client configuration.
type Config struct {
	BaseURL     string
	ObjectiveID string

	Timeout   time.Duration // per request, default 10s
	RateLimit float64       // requests per second, default 10; negative disables
	Burst     int           // default 5

	CacheTTL      time.Duration          // default 30s; negative disables caching
	CacheEntries  int                    // default 256
	CacheStrategy cache.EvictionStrategy // default LRU

	Breaker BreakerConfig

	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (c Config) withDefaults() (Config, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return c, kg.InvalidInput("httpsource.New", "base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return c, kg.InvalidInput("httpsource.New", "invalid base URL %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 10
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.Breaker == (BreakerConfig{}) {
		c.Breaker = DefaultBreakerConfig()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("graph API returned %d", e.Code)
	}
	return fmt.Sprintf("graph API returned %d: %s", e.Code, e.Body)
}

// Client implements source.Source and source.StatsSource over HTTP.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	flight  singleflight.Group
	cache   *cache.Cache[kg.Snapshot]
	logger  *zap.Logger
}

var (
	_ source.Source      = (*Client)(nil)
	_ source.StatsSource = (*Client)(nil)
	_ source.Invalidator = (*Client)(nil)
)

// New creates a client for the API at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		http:   cfg.HTTPClient,
		logger: cfg.Logger.Named("httpsource"),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New[kg.Snapshot](cache.Config{
			MaxEntries: cfg.CacheEntries,
			MaxAge:     cfg.CacheTTL,
			Strategy:   cfg.CacheStrategy,
		})
	}

	bc := cfg.Breaker
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graph-api",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if to == gobreaker.StateOpen {
				breakerState.Set(1)
			} else {
				breakerState.Set(0)
			}
		},
		IsSuccessful: isSuccessful,
	})
	return c, nil
}

// isSuccessful counts server faults and transport errors against the
// breaker. Client errors and cancellations do not trip it.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code < 500
	}
	return false
}

// entityDTO is one row of the entity search response.
type entityDTO struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	SourceIDs        []string `json:"source_ids"`
	Confidence       *float64 `json:"confidence"`
	ExtractionMethod string   `json:"extraction_method,omitempty"`
}

func (d entityDTO) node() kg.Node {
	attrs := kg.Attributes{Confidence: d.Confidence, SourceIDs: d.SourceIDs}
	if d.ExtractionMethod != "" {
		attrs.Extra = map[string]any{"extraction_method": d.ExtractionMethod}
	}
	return kg.Node{ID: d.ID, Label: d.Name, Type: kg.EntityType(d.Type), Attrs: attrs}
}

// FetchEntities searches entities of the configured objective. The result
// carries nodes only.
func (c *Client) FetchEntities(ctx context.Context, f source.Filter) (kg.Snapshot, error) {
	f = f.Normalize()
	q := url.Values{}
	if c.cfg.ObjectiveID != "" {
		q.Set("objective_id", c.cfg.ObjectiveID)
	}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	if f.Type != "" {
		q.Set("entity_type", string(f.Type))
	}
	q.Set("limit", strconv.Itoa(f.Limit))
	path := "/graph/entities?" + q.Encode()

	return c.snapshot(ctx, source.ScopeEntities, path, func(body []byte) (kg.Snapshot, error) {
		var rows []entityDTO
		if err := json.Unmarshal(body, &rows); err != nil {
			return kg.Snapshot{}, fmt.Errorf("decode entities: %w", err)
		}
		snap := kg.Snapshot{Nodes: make([]kg.Node, 0, len(rows))}
		for _, r := range rows {
			snap.Nodes = append(snap.Nodes, r.node())
		}
		return snap, nil
	})
}

// FetchNeighborhood fetches the subgraph within depth hops of entityID.
func (c *Client) FetchNeighborhood(ctx context.Context, entityID string, depth int) (kg.Snapshot, error) {
	if strings.TrimSpace(entityID) == "" {
		return kg.Snapshot{}, kg.InvalidInput("FetchNeighborhood", "entity id is required")
	}
	depth = source.ClampDepth(depth)
	path := fmt.Sprintf("/graph/entities/%s/neighborhood?depth=%d", url.PathEscape(entityID), depth)

	return c.snapshot(ctx, source.ScopeNeighborhood, path, func(body []byte) (kg.Snapshot, error) {
		var snap kg.Snapshot
		if err := json.Unmarshal(body, &snap); err != nil {
			return kg.Snapshot{}, fmt.Errorf("decode neighborhood: %w", err)
		}
		return snap, nil
	})
}

// FetchStats fetches the graph statistics of the configured objective.
func (c *Client) FetchStats(ctx context.Context) (kg.Stats, error) {
	if c.cfg.ObjectiveID == "" {
		return kg.Stats{}, kg.InvalidInput("FetchStats", "objective id is required")
	}
	body, err := c.get(ctx, "statistics", "/graph/statistics/"+url.PathEscape(c.cfg.ObjectiveID))
	if err != nil {
		return kg.Stats{}, err
	}
	var st kg.Stats
	if err := json.Unmarshal(body, &st); err != nil {
		return kg.Stats{}, fmt.Errorf("decode statistics: %w", err)
	}
	return st, nil
}

// Invalidate drops the cached snapshots of one query family, or every
// cached snapshot when scope is empty.
func (c *Client) Invalidate(scope string) int {
	if c.cache == nil {
		return 0
	}
	prefix := ""
	if scope != "" {
		prefix = scope + ":"
	}
	n := c.cache.InvalidatePrefix(prefix)
	c.logger.Debug("cache invalidated", zap.String("scope", scope), zap.Int("entries", n))
	return n
}

// CacheStats returns the snapshot cache counters.
func (c *Client) CacheStats() cache.Stats {
	if c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.GetStats()
}

// snapshot serves path from the cache, or fetches and decodes it once for
// all concurrent callers.
func (c *Client) snapshot(ctx context.Context, endpoint, path string, decode func([]byte) (kg.Snapshot, error)) (kg.Snapshot, error) {
	key := cache.Key(endpoint, path)
	if c.cache != nil {
		if snap, ok := c.cache.Get(key); ok {
			cacheLookups.WithLabelValues("hit").Inc()
			return snap, nil
		}
		cacheLookups.WithLabelValues("miss").Inc()
	}

	// The shared fetch outlives any one caller; each caller still returns
	// as soon as its own ctx is done.
	ch := c.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		body, err := c.get(fctx, endpoint, path)
		if err != nil {
			return kg.Snapshot{}, err
		}
		snap, err := decode(body)
		if err != nil {
			return kg.Snapshot{}, err
		}
		if c.cache != nil {
			c.cache.Put(key, snap)
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return kg.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return kg.Snapshot{}, res.Err
		}
		return res.Val.(kg.Snapshot), nil
	}
}

// get issues a GET through the limiter and the breaker and returns the body.
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, path)
	})
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("request rejected by circuit breaker", zap.String("endpoint", endpoint))
		} else {
			c.logger.Debug("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
		return nil, err
	}
	requestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return out.([]byte), nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+APIPrefix+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: detail(body)}
	}
	return body, nil
}

// detail extracts the API's {"detail": ...} message, or a trimmed body.
func detail(body []byte) string {
	var msg struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &msg) == nil && msg.Detail != nil {
		if s, ok := msg.Detail.(string); ok {
			return s
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
