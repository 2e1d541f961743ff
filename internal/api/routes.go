package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"golang.org/x/time/rate"

	"admission/internal/models"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// WithRateLimiter applies the gateway's own admission middleware to all
// routes, protecting the service itself from abusive clients.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(r *mux.Router) {
		r.Use(middleware)
	}
}

// SetupRoutes configures the HTTP routes for the API.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	// Decision path - the hot endpoint.
	api.HandleFunc("/decisions", handlers.Decide).Methods("POST")
	api.HandleFunc("/decisions", methodNotAllowedHandler).Methods("GET", "PUT", "DELETE", "PATCH")
	api.HandleFunc("/identities/{identity}/window", handlers.GetWindow).Methods("GET")

	// Management API - tier catalog and overrides, optionally throttled.
	admin := api.PathPrefix("").Subrouter()
	if config.Server.AdminThrottle.Enabled {
		admin.Use(adminThrottleMiddleware(config.Server.AdminThrottle))
	}
	admin.HandleFunc("/tiers", handlers.ListTiers).Methods("GET")
	admin.HandleFunc("/tiers", handlers.CreateTier).Methods("POST")
	admin.HandleFunc("/tiers/{name}", handlers.GetTier).Methods("GET")
	admin.HandleFunc("/tiers/{name}", handlers.UpdateTier).Methods("PUT")
	admin.HandleFunc("/tiers/{name}", handlers.DeleteTier).Methods("DELETE")
	admin.HandleFunc("/overrides", handlers.ListOverrides).Methods("GET")
	admin.HandleFunc("/overrides/{identity}", handlers.GetOverride).Methods("GET")
	admin.HandleFunc("/overrides/{identity}", handlers.SaveOverride).Methods("PUT")
	admin.HandleFunc("/overrides/{identity}", handlers.DeleteOverride).Methods("DELETE")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest)
	json.NewEncoder(w).Encode(errorResp)
}

// adminThrottleMiddleware bounds the management endpoints with one
// process-wide token bucket. Admin traffic is human-scale; a single limiter
// is enough and keeps catalog churn from starving the decision path.
func adminThrottleMiddleware(cfg models.AdminThrottleConfig) mux.MiddlewareFunc {
	throttle := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !throttle.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				errorResp := models.NewErrorResponse("Management API throttled", models.ErrorCodeRateLimitExceeded)
				json.NewEncoder(w).Encode(errorResp)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				errorResp := models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError)
				json.NewEncoder(w).Encode(errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
