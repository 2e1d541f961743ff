// Package models - API response types and error handling.
// All outgoing responses share a consistent JSON structure; error responses
// carry machine-readable codes alongside human-readable messages.
package models

import (
	"time"
)

// DecisionResponse reports the outcome of an admission check. A denial is an
// ordinary 200 response with Allowed set to false - only malformed requests
// produce error envelopes.
type DecisionResponse struct {
	Allowed           bool      `json:"allowed"`
	Identity          string    `json:"identity"`
	Tier              string    `json:"tier"`
	MinuteLimit       int       `json:"minute_limit"`
	MinuteRemaining   int       `json:"minute_remaining"`
	HourLimit         int       `json:"hour_limit"`
	HourRemaining     int       `json:"hour_remaining"`
	ResetAt           time.Time `json:"reset_at"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"` // Set only on denial
}

// BucketCount is one minute bucket in a window snapshot.
type BucketCount struct {
	MinuteStart time.Time `json:"minute_start"`
	Count       int       `json:"count"`
}

// WindowResponse is the admin view of an identity's open hour table. Only
// non-zero buckets are listed.
type WindowResponse struct {
	Identity  string        `json:"identity"`
	Tier      string        `json:"tier"`
	HourStart time.Time     `json:"hour_start"`
	HourCount int           `json:"hour_count"`
	Buckets   []BucketCount `json:"buckets"`
}

type TierResponse struct {
	Name         string    `json:"name"`
	MaxPerMinute int       `json:"max_per_minute"`
	MaxPerHour   int       `json:"max_per_hour"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (tr *TierResponse) FromTier(t *Tier) {
	tr.Name = t.Name
	tr.MaxPerMinute = t.MaxPerMinute
	tr.MaxPerHour = t.MaxPerHour
	tr.CreatedAt = t.CreatedAt
	tr.UpdatedAt = t.UpdatedAt
}

type ListTiersResponse struct {
	Tiers      []TierResponse `json:"tiers"`
	TotalCount int            `json:"total_count"`
}

type OverrideResponse struct {
	Identity  string    `json:"identity"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

type ListOverridesResponse struct {
	Overrides  []OverrideResponse `json:"overrides"`
	TotalCount int                `json:"total_count"`
}

type DeleteResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string            `json:"error"`             // Always "error"
	Message   string            `json:"message"`           // Human-readable description
	Code      string            `json:"code,omitempty"`    // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"` // Field-specific details
	Timestamp time.Time         `json:"timestamp"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health status constants.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Standard error codes, upper-case with underscores, mapped to HTTP status
// codes by the handlers.
const (
	ErrorCodeNotFound          = "NOT_FOUND"           // 404
	ErrorCodeBadRequest        = "BAD_REQUEST"         // 400
	ErrorCodeInvalidRequest    = "INVALID_REQUEST"     // 400
	ErrorCodeValidation        = "VALIDATION_ERROR"    // 422
	ErrorCodeConflict          = "CONFLICT"            // 409
	ErrorCodeInternalError     = "INTERNAL_ERROR"      // 500
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED" // 429
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
