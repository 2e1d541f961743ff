package tiers

import "errors"

var (
	// ErrNotFound is returned when a tier or override does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTierInUse is returned when deleting a tier that overrides still
	// reference.
	ErrTierInUse = errors.New("tier is referenced by overrides")
)
