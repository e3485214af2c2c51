package ports

import (
	"context"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
)

// TargetCriterion selects which vehicle actor the bridge tracks. An explicit
// ID wins over the role label; ID 0 means "not set".
type TargetCriterion struct {
	ID   int
	Role string
}

// VehicleSource owns the session to the simulation endpoint. It never retries
// internally: re-acquisition and reconnect policy live in the orchestrator.
type VehicleSource interface {
	// Connect establishes the session. It does not select a vehicle.
	Connect(ctx context.Context) error

	// AcquireTarget resolves the tracked vehicle. Priority: explicit ID
	// (ErrTargetNotFound if absent, no fallback), then role-label scan,
	// then the first enumerated vehicle, then ErrNoVehicles.
	AcquireTarget(ctx context.Context, criterion TargetCriterion) (domain.Vehicle, error)

	// IsAlive is a cheap liveness probe for a previously acquired vehicle.
	IsAlive(ctx context.Context, id int) bool

	// ReadVelocity reads the current velocity. A handle the simulator no
	// longer recognises yields ErrStaleHandle, never stale data.
	ReadVelocity(ctx context.Context, id int) (domain.Velocity, error)

	// Close releases the session. Idempotent.
	Close() error
}
