package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	mutate := func(fn func(*Config)) *Config {
		cfg := NewDefaultConfig()
		fn(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"bad port", mutate(func(c *Config) { c.Server.Port = 0 }), "invalid server config"},
		{"empty host", mutate(func(c *Config) { c.Server.Host = "" }), "invalid server config"},
		{"throttle without rate", mutate(func(c *Config) { c.Server.AdminThrottle.RequestsPerSecond = 0 }), "invalid server config"},
		{"self limit without budget", mutate(func(c *Config) {
			c.Server.SelfLimit.Enabled = true
			c.Server.SelfLimit.MaxPerMinute = 0
		}), "invalid server config"},
		{"empty default tier", mutate(func(c *Config) { c.Limits.DefaultTier = "" }), "invalid limits config"},
		{"negative limit", mutate(func(c *Config) { c.Limits.MaxPerHour = -5 }), "invalid limits config"},
		{"unknown store", mutate(func(c *Config) { c.Store.Type = "etcd" }), "invalid store config"},
		{"json store without path", mutate(func(c *Config) { c.Store.Type = StoreTypeJSON }), "invalid store config"},
		{"sqlite store without dsn", mutate(func(c *Config) { c.Store.Type = StoreTypeSQLite }), "invalid store config"},
		{"bad log level", mutate(func(c *Config) { c.Logging.Level = "loud" }), "invalid logging config"},
		{"file log without path", mutate(func(c *Config) { c.Logging.Output = "file" }), "invalid logging config"},
		{"metrics without path", mutate(func(c *Config) { c.Metrics.Path = "" }), "invalid metrics config"},
		{"otlp without endpoint", mutate(func(c *Config) {
			c.Observability.Tracing.Enabled = true
			c.Observability.Tracing.Exporter = "otlp"
		}), "invalid observability config"},
		{"sample rate out of range", mutate(func(c *Config) {
			c.Observability.Tracing.Enabled = true
			c.Observability.Tracing.Exporter = "stdout"
			c.Observability.Tracing.SampleRate = 1.5
		}), "invalid observability config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.cfg.Validate(), tt.wantErr)
		})
	}
}

func TestDecisionRequestValidate(t *testing.T) {
	assert.NoError(t, (&DecisionRequest{Identity: "client-1"}).Validate())
	assert.Error(t, (&DecisionRequest{}).Validate())
	assert.Error(t, (&DecisionRequest{Identity: "  "}).Validate())
}

func TestSaveRequestsValidate(t *testing.T) {
	assert.NoError(t, (&SaveTierRequest{Name: "pro", MaxPerMinute: 1, MaxPerHour: 1}).Validate())
	assert.Error(t, (&SaveTierRequest{Name: "pro", MaxPerHour: 1}).Validate())
	assert.Error(t, (&SaveTierRequest{Name: "pro", MaxPerMinute: 1}).Validate())

	assert.NoError(t, (&SaveOverrideRequest{Tier: "pro"}).Validate())
	assert.Error(t, (&SaveOverrideRequest{}).Validate())
}
