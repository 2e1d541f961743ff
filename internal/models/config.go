// Package models - Service configuration and operational settings.
// Defines the hierarchical configuration for all service components with
// environment-friendly defaults and fail-fast validation.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Store type constants for the tier catalog.
const (
	StoreTypeMemory   = "memory"
	StoreTypeJSON     = "json"
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Limits        LimitsConfig        `yaml:"limits" json:"limits"`
	Store         StoreConfig         `yaml:"store" json:"store"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port          int                 `yaml:"port" json:"port"`
	Host          string              `yaml:"host" json:"host"`
	ReadTimeout   time.Duration       `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout  time.Duration       `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout   time.Duration       `yaml:"idle_timeout" json:"idle_timeout"`
	AdminThrottle AdminThrottleConfig `yaml:"admin_throttle" json:"admin_throttle"`
	SelfLimit     SelfLimitConfig     `yaml:"self_limit" json:"self_limit"`
}

// AdminThrottleConfig bounds the tier/override management endpoints with a
// single process-wide token bucket.
type AdminThrottleConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// SelfLimitConfig applies the windowed limiter to the gateway's own API
// traffic, keyed by client IP.
type SelfLimitConfig struct {
	Enabled      bool `yaml:"enabled" json:"enabled"`
	MaxPerMinute int  `yaml:"max_per_minute" json:"max_per_minute"`
	MaxPerHour   int  `yaml:"max_per_hour" json:"max_per_hour"`
}

// LimitsConfig holds the default admission limits and the lifecycle settings
// shared by every tier's limiter.
type LimitsConfig struct {
	DefaultTier     string        `yaml:"default_tier" json:"default_tier"`
	MaxPerMinute    int           `yaml:"max_per_minute" json:"max_per_minute"`
	MaxPerHour      int           `yaml:"max_per_hour" json:"max_per_hour"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	IdleTTL         time.Duration `yaml:"idle_ttl" json:"idle_ttl"`
}

type StoreConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Path     string         `yaml:"path" json:"path"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
// The memory tier store works out of the box; the default tier carries
// conservative limits suitable for a public API.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			AdminThrottle: AdminThrottleConfig{
				Enabled:           true,
				RequestsPerSecond: 5,
				Burst:             10,
			},
			SelfLimit: SelfLimitConfig{
				Enabled:      false,
				MaxPerMinute: 600,
				MaxPerHour:   10000,
			},
		},
		Limits: LimitsConfig{
			DefaultTier:     "default",
			MaxPerMinute:    60,
			MaxPerHour:      1000,
			CleanupInterval: 5 * time.Minute,
			IdleTTL:         10 * time.Minute,
		},
		Store: StoreConfig{
			Type: StoreTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "admission",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("invalid limits config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.AdminThrottle.Enabled {
		if sc.AdminThrottle.RequestsPerSecond <= 0 {
			return errors.New("admin throttle requests per second must be positive")
		}
		if sc.AdminThrottle.Burst <= 0 {
			return errors.New("admin throttle burst must be positive")
		}
	}

	if sc.SelfLimit.Enabled {
		if sc.SelfLimit.MaxPerMinute <= 0 {
			return errors.New("self limit max per minute must be positive")
		}
		if sc.SelfLimit.MaxPerHour <= 0 {
			return errors.New("self limit max per hour must be positive")
		}
	}

	return nil
}

func (lc *LimitsConfig) Validate() error {
	if lc.DefaultTier == "" {
		return errors.New("default tier name cannot be empty")
	}

	if lc.MaxPerMinute <= 0 {
		return errors.New("max per minute must be positive")
	}

	if lc.MaxPerHour <= 0 {
		return errors.New("max per hour must be positive")
	}

	if lc.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}

	if lc.IdleTTL < 0 {
		return errors.New("idle TTL cannot be negative")
	}

	return nil
}

func (stc *StoreConfig) Validate() error {
	switch stc.Type {
	case StoreTypeMemory:
		// Memory store requires no additional configuration.
	case StoreTypeJSON:
		if stc.Path == "" {
			return errors.New("path is required for JSON store")
		}
	case StoreTypeSQLite, StoreTypePostgres:
		if stc.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s store", stc.Type)
		}
	default:
		return fmt.Errorf("invalid store type: %s", stc.Type)
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "stdout", "stderr", "file":
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}

	if oc.Tracing.Enabled {
		switch oc.Tracing.Exporter {
		case "stdout":
		case "otlp":
			if oc.Tracing.OTLPEndpoint == "" {
				return errors.New("OTLP endpoint is required for the otlp exporter")
			}
		default:
			return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
		}

		if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
			return errors.New("trace sample rate must be between 0 and 1")
		}
	}

	return nil
}
