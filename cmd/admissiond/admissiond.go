package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission/internal/api"
	"admission/internal/config"
	"admission/internal/limiter"
	"admission/internal/logger"
	"admission/internal/models"
	"admission/internal/observability"
	"admission/internal/tiers"
	"admission/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	exampleConfig = flag.String("write-example-config", "", "Write an example configuration file to the given path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *exampleConfig)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ver := version.GetInfo()

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize the tier catalog store
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := tiers.NewStore(startCtx, cfg.Store)
	startCancel()
	if err != nil {
		slog.Error("Failed to initialize tier store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := seedDefaultTier(context.Background(), store, cfg); err != nil {
		slog.Error("Failed to seed default tier", "error", err)
		os.Exit(1)
	}

	// Build the registry. Every tier's limiter shares the lifecycle settings
	// from the limits config; instrumentation wraps each limiter when metrics
	// are enabled.
	registry := limiter.NewRegistry(cfg.Limits.DefaultTier, func(tier models.Tier) (limiter.Limiter, error) {
		l, err := limiter.NewWindowedLimiter(
			tier.MaxPerMinute,
			tier.MaxPerHour,
			cfg.Limits.CleanupInterval,
			limiter.WithIdleTTL(cfg.Limits.IdleTTL),
		)
		if err != nil {
			return nil, err
		}
		if !cfg.Metrics.Enabled {
			return l, nil
		}
		return observability.NewInstrumentedLimiter(l, tier.Name)
	})
	defer registry.Close()

	if err := loadCatalog(context.Background(), store, registry); err != nil {
		slog.Error("Failed to load tier catalog", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP handlers
	handlers := api.NewHandlers(store, registry)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Protect the gateway's own API when configured.
	if cfg.Server.SelfLimit.Enabled {
		selfLimiter, err := limiter.NewWindowedLimiter(
			cfg.Server.SelfLimit.MaxPerMinute,
			cfg.Server.SelfLimit.MaxPerHour,
			cfg.Limits.CleanupInterval,
		)
		if err != nil {
			slog.Error("Failed to create self rate limiter", "error", err)
			os.Exit(1)
		}
		defer selfLimiter.Close()
		routeOpts = append(routeOpts, api.WithRateLimiter(limiter.Middleware(selfLimiter)))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server",
			"addr", server.Addr,
			"default_tier", cfg.Limits.DefaultTier,
			"store", cfg.Store.Type)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// seedDefaultTier inserts the configured default tier into the catalog when it
// is absent, so a fresh deployment serves decisions without any admin calls.
// Existing catalog entries win over configuration.
func seedDefaultTier(ctx context.Context, store tiers.Store, cfg *models.Config) error {
	if _, err := store.GetTier(ctx, cfg.Limits.DefaultTier); err == nil {
		return nil
	}

	now := time.Now().UTC()
	tier := models.Tier{
		Name:         cfg.Limits.DefaultTier,
		MaxPerMinute: cfg.Limits.MaxPerMinute,
		MaxPerHour:   cfg.Limits.MaxPerHour,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tier.Normalize()
	if err := tier.Validate(); err != nil {
		return fmt.Errorf("default tier from config: %w", err)
	}
	if err := store.SaveTier(ctx, &tier); err != nil {
		return fmt.Errorf("save default tier: %w", err)
	}
	slog.Info("Default tier seeded",
		"tier", tier.Name,
		"max_per_minute", tier.MaxPerMinute,
		"max_per_hour", tier.MaxPerHour)
	return nil
}

// loadCatalog registers every persisted tier and override with the registry.
// Overrides pointing at unknown tiers are logged and skipped; affected
// identities fall back to the default tier.
func loadCatalog(ctx context.Context, store tiers.Store, registry *limiter.Registry) error {
	allTiers, err := store.Tiers(ctx)
	if err != nil {
		return fmt.Errorf("list tiers: %w", err)
	}
	for _, t := range allTiers {
		if err := registry.SetTier(*t); err != nil {
			return fmt.Errorf("register tier %s: %w", t.Name, err)
		}
	}

	overrides, err := store.Overrides(ctx)
	if err != nil {
		return fmt.Errorf("list overrides: %w", err)
	}
	for _, o := range overrides {
		if err := registry.SetOverride(o.Identity, o.Tier); err != nil {
			slog.Warn("Skipping override with unknown tier",
				"identity", o.Identity, "tier", o.Tier, "error", err)
		}
	}

	slog.Info("Tier catalog loaded", "tiers", len(allTiers), "overrides", len(overrides))
	return nil
}
