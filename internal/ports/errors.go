package ports

import "errors"

// Error taxonomy for per-tick recovery dispatch. Everything here is
// recoverable at tick cadence; only a startup failure is fatal.
var (
	// ErrNoVehicles: the world contains no vehicle actors at all.
	ErrNoVehicles = errors.New("no vehicle actors present")

	// ErrTargetNotFound: an explicitly requested vehicle ID does not exist.
	ErrTargetNotFound = errors.New("target vehicle not found")

	// ErrStaleHandle: the tracked vehicle is no longer known to the
	// simulator; the caller must re-acquire.
	ErrStaleHandle = errors.New("stale vehicle handle")

	// ErrNotConnected: an operation was attempted on a closed session.
	ErrNotConnected = errors.New("not connected")

	// ErrConnection wraps endpoint-unreachable failures on either side.
	ErrConnection = errors.New("connection failure")

	// ErrPublish wraps batch-publish failures at the sink.
	ErrPublish = errors.New("publish failure")
)
