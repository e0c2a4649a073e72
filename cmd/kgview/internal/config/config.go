// Package config loads kgview.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "kgview.yaml"

// Config represents the kgview.yaml configuration
type Config struct {
	Log    *LogConfig    `yaml:"log"`
	Source *SourceConfig `yaml:"source"`
	Server *ServerConfig `yaml:"server"`
	Viewer *ViewerConfig `yaml:"viewer"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// SourceConfig selects where snapshots come from.
type SourceConfig struct {
	// Kind is "file" or "http".
	Kind  string `yaml:"kind" validate:"oneof=file http"`
	File  string `yaml:"file" validate:"required_if=Kind file"`
	Watch bool   `yaml:"watch"`

	// Latency delays file fetches, to exercise loading states.
	Latency time.Duration `yaml:"latency" validate:"gte=0"`

	HTTP *HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the graph API client.
type HTTPConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	ObjectiveID string        `yaml:"objective_id"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	RateLimit   float64       `yaml:"rate_limit"`
	Burst       int           `yaml:"burst" validate:"gte=0"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	CacheSize   int           `yaml:"cache_size" validate:"gte=0"`

	// CacheStrategy is the eviction policy: lru, lfu or fifo.
	CacheStrategy string `yaml:"cache_strategy" validate:"oneof=lru lfu fifo"`

	Breaker *BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the API.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// ServerConfig contains browser host configuration
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port" validate:"gte=1,lte=65535"`
	MaxSessions int    `yaml:"max_sessions" validate:"gte=1"`

	// AllowedOrigins lists extra websocket origins besides the server's own.
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace" validate:"gte=0"`
}

// ViewerConfig contains engine defaults shared by every host.
type ViewerConfig struct {
	Width  float64 `yaml:"width" validate:"gt=0"`
	Height float64 `yaml:"height" validate:"gt=0"`
	Depth  int     `yaml:"depth" validate:"gte=1,lte=3"`
	Limit  int     `yaml:"limit" validate:"gte=1,lte=500"`
	FPS    int     `yaml:"fps" validate:"gte=1,lte=240"`
	Seed   int64   `yaml:"seed"`

	// Ticks is how long the render command lets the layout run.
	Ticks int `yaml:"ticks" validate:"gte=1"`
}

// TickInterval returns the tick period for FPS.
func (v *ViewerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(v.FPS)
}

// Load reads path, or ./kgview.yaml when path is empty. A missing default
// file yields the default configuration; a missing explicit path is an
// error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Relative fixture paths are resolved against the config file.
	if config.Source.File != "" && !filepath.IsAbs(config.Source.File) {
		config.Source.File = filepath.Join(filepath.Dir(path), config.Source.File)
	}
	return config, nil
}

// Parse decodes, defaults and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Log: &LogConfig{Level: "info"},
		Source: &SourceConfig{
			Kind: "file",
			File: "graph.yaml",
			HTTP: &HTTPConfig{
				Timeout:       10 * time.Second,
				RateLimit:     10,
				Burst:         5,
				CacheTTL:      30 * time.Second,
				CacheSize:     256,
				CacheStrategy: "lru",
				Breaker: &BreakerConfig{
					MaxRequests:      5,
					Interval:         30 * time.Second,
					Timeout:          60 * time.Second,
					FailureThreshold: 0.8,
					MinRequests:      5,
				},
			},
		},
		Server: &ServerConfig{
			Host:          "localhost",
			Port:          8080,
			MaxSessions:   64,
			ShutdownGrace: 5 * time.Second,
		},
		Viewer: &ViewerConfig{
			Width:  800,
			Height: 600,
			Depth:  2,
			Limit:  100,
			FPS:    60,
			Seed:   1,
			Ticks:  300,
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Log == nil {
		config.Log = defaults.Log
	} else if config.Log.Level == "" {
		config.Log.Level = defaults.Log.Level
	}
	config.Log.Level = strings.ToLower(config.Log.Level)

	if config.Source == nil {
		config.Source = defaults.Source
	} else {
		if config.Source.Kind == "" {
			config.Source.Kind = defaults.Source.Kind
		}
		if config.Source.Kind == "file" && config.Source.File == "" {
			config.Source.File = defaults.Source.File
		}
		if config.Source.HTTP == nil {
			config.Source.HTTP = defaults.Source.HTTP
		} else {
			h, d := config.Source.HTTP, defaults.Source.HTTP
			if h.Timeout == 0 {
				h.Timeout = d.Timeout
			}
			if h.RateLimit == 0 {
				h.RateLimit = d.RateLimit
			}
			if h.Burst == 0 {
				h.Burst = d.Burst
			}
			if h.CacheTTL == 0 {
				h.CacheTTL = d.CacheTTL
			}
			if h.CacheSize == 0 {
				h.CacheSize = d.CacheSize
			}
			if h.CacheStrategy == "" {
				h.CacheStrategy = d.CacheStrategy
			}
			h.CacheStrategy = strings.ToLower(h.CacheStrategy)
			if h.Breaker == nil {
				h.Breaker = d.Breaker
			}
		}
	}

	if config.Server == nil {
		config.Server = defaults.Server
	} else {
		if config.Server.Host == "" {
			config.Server.Host = defaults.Server.Host
		}
		if config.Server.Port == 0 {
			config.Server.Port = defaults.Server.Port
		}
		if config.Server.MaxSessions == 0 {
			config.Server.MaxSessions = defaults.Server.MaxSessions
		}
		if config.Server.ShutdownGrace == 0 {
			config.Server.ShutdownGrace = defaults.Server.ShutdownGrace
		}
	}

	if config.Viewer == nil {
		config.Viewer = defaults.Viewer
	} else {
		v, d := config.Viewer, defaults.Viewer
		if v.Width == 0 {
			v.Width = d.Width
		}
		if v.Height == 0 {
			v.Height = d.Height
		}
		if v.Depth == 0 {
			v.Depth = d.Depth
		}
		if v.Limit == 0 {
			v.Limit = d.Limit
		}
		if v.FPS == 0 {
			v.FPS = d.FPS
		}
		if v.Ticks == 0 {
			v.Ticks = d.Ticks
		}
	}
}

var validate = validator.New()

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Source.Kind == "http" && c.Source.HTTP.BaseURL == "" {
		return errors.New("invalid config: source.http.base_url is required for the http source")
	}
	return nil
}

// Addr returns the server listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
