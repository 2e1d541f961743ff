// Package models - API request types and input validation.
// Incoming request structures validate fail-fast with clear messages and
// normalize input for consistent processing.
package models

import (
	"errors"
	"strings"
	"time"
)

// DecisionRequest asks whether one request from the given identity may
// proceed. The timestamp is optional at the transport layer; when absent the
// gateway stamps the request with its own clock before calling the limiter.
type DecisionRequest struct {
	Identity  string     `json:"identity" validate:"required"` // Subject being rate limited
	Timestamp *time.Time `json:"timestamp,omitempty"`          // Request instant, RFC3339 (optional)
}

func (r *DecisionRequest) Validate() error {
	if strings.TrimSpace(r.Identity) == "" {
		return errors.New("identity is required")
	}
	if r.Timestamp != nil && r.Timestamp.IsZero() {
		return errors.New("timestamp must be a valid instant when provided")
	}
	return nil
}

// SaveTierRequest creates or replaces a tier's limits.
type SaveTierRequest struct {
	Name         string `json:"name,omitempty"` // Optional in PUT bodies; path wins
	MaxPerMinute int    `json:"max_per_minute" validate:"required"`
	MaxPerHour   int    `json:"max_per_hour" validate:"required"`
}

func (r *SaveTierRequest) Validate() error {
	if r.MaxPerMinute <= 0 {
		return errors.New("max_per_minute must be positive")
	}
	if r.MaxPerHour <= 0 {
		return errors.New("max_per_hour must be positive")
	}
	return nil
}

// SaveOverrideRequest assigns an identity to a tier.
type SaveOverrideRequest struct {
	Tier string `json:"tier" validate:"required"`
}

func (r *SaveOverrideRequest) Validate() error {
	if strings.TrimSpace(r.Tier) == "" {
		return errors.New("tier is required")
	}
	return nil
}
