package ports

import (
	"context"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
)

// SignalSink owns the session to the telemetry-ingestion endpoint.
type SignalSink interface {
	// Connect opens the session. Failure is reported, never retried here.
	Connect(ctx context.Context) error

	// Publish sends all signals as one atomic batch. On failure the sink
	// transitions to disconnected and the caller decides when to reconnect.
	Publish(ctx context.Context, signals []domain.Signal) error

	// Disconnect closes the session. Safe to call when already disconnected.
	Disconnect()

	// Connected reports the binary session state.
	Connected() bool

	Name() string
}
