// Package limiter provides per-identity request admission using a sliding
// window with counters. Each identity gets a table of 60 fixed minute buckets
// spanning the open clock-hour plus an hourly aggregate; the whole table is
// recycled whenever a request falls into a different hour. It also includes
// HTTP middleware that sets standard rate limit response headers.
package limiter

import (
	"errors"
	"time"
)

// Limiter defines the admission contract. Implementations must be safe for
// concurrent use, including concurrent calls for the same identity.
type Limiter interface {
	// Allow decides whether the request identified by identity, observed at
	// the given instant, may proceed. Denials are ordinary outcomes (false,
	// nil error); errors are reserved for invalid input and internal
	// invariant violations.
	Allow(identity string, at time.Time) (allowed bool, info Info, err error)

	// Window returns a read-only snapshot of the identity's open hour table,
	// or false when the identity has no state.
	Window(identity string) (Window, bool)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info contains admission state for populating response headers.
type Info struct {
	MinuteLimit     int           // Maximum admissions per minute bucket
	MinuteRemaining int           // Admissions left in the current minute
	HourLimit       int           // Maximum admissions per hour window
	HourRemaining   int           // Admissions left in the current hour
	ResetAt         time.Time     // When the binding budget next resets
	RetryAfter      time.Duration // How long to wait (meaningful only when denied)
}

// Window is a point-in-time snapshot of one identity's bucket table.
type Window struct {
	HourStart time.Time     // Start of the open hour, UTC
	HourCount int           // Sum of all bucket counts
	Buckets   map[int64]int // Minute-start unix millis -> count, non-zero entries only
	LastSeen  time.Time     // Last Allow call that touched this identity
}

var (
	// ErrInvalidTimestamp is returned when Allow is called with a zero
	// timestamp. A missing instant is never treated as "now".
	ErrInvalidTimestamp = errors.New("limiter: zero request timestamp")

	// ErrBucketMissing reports that a minute key was absent from a table that
	// was just ensured to span its hour. It indicates truncation and table
	// construction have drifted apart and is not an ordinary denial.
	ErrBucketMissing = errors.New("limiter: minute bucket missing from hour table")
)
