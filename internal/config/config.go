package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"admission/internal/models"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("ADMISSION_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("ADMISSION_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("ADMISSION_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("ADMISSION_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("ADMISSION_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	if throttle := os.Getenv("ADMISSION_ADMIN_THROTTLE_ENABLED"); throttle != "" {
		config.Server.AdminThrottle.Enabled = strings.ToLower(throttle) == "true"
	}

	if rps := os.Getenv("ADMISSION_ADMIN_THROTTLE_RPS"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			config.Server.AdminThrottle.RequestsPerSecond = r
		}
	}

	if burst := os.Getenv("ADMISSION_ADMIN_THROTTLE_BURST"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			config.Server.AdminThrottle.Burst = b
		}
	}

	if selfLimit := os.Getenv("ADMISSION_SELF_LIMIT_ENABLED"); selfLimit != "" {
		config.Server.SelfLimit.Enabled = strings.ToLower(selfLimit) == "true"
	}

	// Limits configuration
	if tier := os.Getenv("ADMISSION_DEFAULT_TIER"); tier != "" {
		config.Limits.DefaultTier = tier
	}

	if perMinute := os.Getenv("ADMISSION_MAX_PER_MINUTE"); perMinute != "" {
		if n, err := strconv.Atoi(perMinute); err == nil {
			config.Limits.MaxPerMinute = n
		}
	}

	if perHour := os.Getenv("ADMISSION_MAX_PER_HOUR"); perHour != "" {
		if n, err := strconv.Atoi(perHour); err == nil {
			config.Limits.MaxPerHour = n
		}
	}

	if interval := os.Getenv("ADMISSION_CLEANUP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Limits.CleanupInterval = d
		}
	}

	if ttl := os.Getenv("ADMISSION_IDLE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Limits.IdleTTL = d
		}
	}

	// Store configuration
	if storeType := os.Getenv("ADMISSION_STORE_TYPE"); storeType != "" {
		config.Store.Type = storeType
	}

	if storePath := os.Getenv("ADMISSION_STORE_PATH"); storePath != "" {
		config.Store.Path = storePath
	}

	if dsn := os.Getenv("ADMISSION_DATABASE_DSN"); dsn != "" {
		config.Store.Database.DSN = dsn
	}

	if maxOpen := os.Getenv("ADMISSION_DATABASE_MAX_OPEN_CONNS"); maxOpen != "" {
		if conns, err := strconv.Atoi(maxOpen); err == nil {
			config.Store.Database.MaxOpenConns = conns
		}
	}

	if maxIdle := os.Getenv("ADMISSION_DATABASE_MAX_IDLE_CONNS"); maxIdle != "" {
		if conns, err := strconv.Atoi(maxIdle); err == nil {
			config.Store.Database.MaxIdleConns = conns
		}
	}

	// Logging configuration
	if level := os.Getenv("ADMISSION_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("ADMISSION_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("ADMISSION_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("ADMISSION_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("ADMISSION_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("ADMISSION_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("ADMISSION_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Observability configuration
	if name := os.Getenv("ADMISSION_SERVICE_NAME"); name != "" {
		config.Observability.ServiceName = name
	}

	if tracing := os.Getenv("ADMISSION_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}

	if exporter := os.Getenv("ADMISSION_TRACE_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("ADMISSION_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}

	if rate := os.Getenv("ADMISSION_TRACE_SAMPLE_RATE"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Observability.Tracing.SampleRate = r
		}
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with some example values
	config := models.NewDefaultConfig()

	config.Store.Type = models.StoreTypeJSON
	config.Store.Path = "/var/lib/admission/catalog.json"
	config.Server.SelfLimit.Enabled = true

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
