// Package config loads the graphq configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphq/internal/engine"
	"github.com/roach88/graphq/internal/geocode"
	"github.com/roach88/graphq/internal/metrics"
)

// Backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the file format.
//
// Example:
//
//	store:
//	  backend: sqlite
//	  path: graph.db
//	schema: schema.cue
//	executor:
//	  max_materialized: 50000
//	  index_timeout: 10s
//	geocoder:
//	  addresses:
//	    Berlin: {lat: 52.52, lon: 13.405}
//	  ttl: 1h
//	log:
//	  level: debug
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Schema   string         `yaml:"schema"`
	Executor ExecutorConfig `yaml:"executor"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type ExecutorConfig struct {
	MaxMaterialized int           `yaml:"max_materialized"`
	IndexTimeout    time.Duration `yaml:"index_timeout"`
	GeocodeTimeout  time.Duration `yaml:"geocode_timeout"`
}

// GeocoderConfig configures the table geocoder and the cache in front of it.
type GeocoderConfig struct {
	Addresses   map[string]geocode.Point `yaml:"addresses"`
	CacheSize   int                      `yaml:"cache_size"`
	TTL         time.Duration            `yaml:"ttl"`
	NegativeTTL time.Duration            `yaml:"negative_ttl"`
	Timeout     time.Duration            `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Store: StoreConfig{Backend: BackendSQLite, Path: "graphq.db"},
		Executor: ExecutorConfig{
			MaxMaterialized: engine.DefaultMaxMaterialized,
			IndexTimeout:    engine.DefaultIndexTimeout,
			GeocodeTimeout:  engine.DefaultGeocodeTimeout,
		},
		Geocoder: GeocoderConfig{
			CacheSize:   geocode.DefaultCacheSize,
			TTL:         geocode.DefaultTTL,
			NegativeTTL: geocode.DefaultNegativeTTL,
			Timeout:     geocode.DefaultTimeout,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. Unknown fields are errors. Relative
// store and schema paths are resolved against the file's directory. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = Parse(data)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	if cfg.Store.Path != "" && cfg.Store.Path != ":memory:" && !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(base, cfg.Store.Path)
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(base, cfg.Schema)
	}
	return cfg, nil
}

// Parse decodes a configuration document over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendMemory, c.Store.Backend)
	}
	if c.Executor.IndexTimeout < 0 || c.Executor.GeocodeTimeout < 0 {
		return fmt.Errorf("executor timeouts must not be negative")
	}
	if c.Geocoder.CacheSize <= 0 {
		return fmt.Errorf("geocoder.cache_size must be positive")
	}
	if c.Geocoder.TTL < 0 || c.Geocoder.NegativeTTL < 0 || c.Geocoder.Timeout < 0 {
		return fmt.Errorf("geocoder durations must not be negative")
	}
	for addr, p := range c.Geocoder.Addresses {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("geocoder.addresses[%q]: %s is not a valid coordinate", addr, p)
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewGeocoder builds the cached table geocoder.
func (c Config) NewGeocoder(m *metrics.Metrics) (*geocode.Cached, error) {
	g := c.Geocoder
	return geocode.NewCached(geocode.NewStatic(g.Addresses),
		geocode.WithSize(g.CacheSize),
		geocode.WithTTL(g.TTL),
		geocode.WithNegativeTTL(g.NegativeTTL),
		geocode.WithTimeout(g.Timeout),
		geocode.WithMetrics(m),
	)
}

// ExecutorOptions returns the executor options the configuration sets.
func (c Config) ExecutorOptions() []engine.Option {
	return []engine.Option{
		engine.WithMaxMaterialized(c.Executor.MaxMaterialized),
		engine.WithIndexTimeout(c.Executor.IndexTimeout),
		engine.WithGeocodeTimeout(c.Executor.GeocodeTimeout),
	}
}
