package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// tierNamePattern restricts tier names to URL-safe identifiers.
var tierNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Tier is a named pair of admission limits. Every identity is admitted under
// exactly one tier; identities without an override use the default tier.
type Tier struct {
	Name         string    `json:"name" yaml:"name"`
	MaxPerMinute int       `json:"max_per_minute" yaml:"max_per_minute"`
	MaxPerHour   int       `json:"max_per_hour" yaml:"max_per_hour"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// Normalize lowercases and trims the tier name.
func (t *Tier) Normalize() {
	t.Name = strings.ToLower(strings.TrimSpace(t.Name))
}

func (t *Tier) Validate() error {
	if t.Name == "" {
		return errors.New("tier name cannot be empty")
	}
	if !tierNamePattern.MatchString(t.Name) {
		return fmt.Errorf("invalid tier name: %s", t.Name)
	}
	if t.MaxPerMinute <= 0 {
		return errors.New("max per minute must be positive")
	}
	if t.MaxPerHour <= 0 {
		return errors.New("max per hour must be positive")
	}
	return nil
}

// Override assigns a single identity to a tier other than the default.
type Override struct {
	Identity  string    `json:"identity" yaml:"identity"`
	Tier      string    `json:"tier" yaml:"tier"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func (o *Override) Validate() error {
	if strings.TrimSpace(o.Identity) == "" {
		return errors.New("override identity cannot be empty")
	}
	if o.Tier == "" {
		return errors.New("override tier cannot be empty")
	}
	return nil
}
