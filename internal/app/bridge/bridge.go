// Package bridge drives the sampling loop: read the tracked vehicle's
// velocity, derive speed and RPM, publish both to the sink, and contain
// every per-tick failure so the loop only exits on cancellation.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
	"github.com/tri2510/carla-vss-bridge/internal/estimator"
	"github.com/tri2510/carla-vss-bridge/internal/ports"
)

// State of the orchestrator lifecycle.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

// Params is the immutable per-run configuration of the loop.
type Params struct {
	Criterion      ports.TargetCriterion
	SpeedPath      string
	RPMPath        string
	MaxSpeedKMH    float64
	RPMIdle        float64
	RPMMax         float64
	UpdateInterval time.Duration
	ReconnectDelay time.Duration
}

// Bridge owns the lifecycle of one source and one sink. Single goroutine,
// strictly sequential tick steps; the end-of-tick sleep is the only
// suspension point, and cancellation is observed there and at the top of
// each iteration, never inside a tick.
type Bridge struct {
	params Params
	source ports.VehicleSource
	sink   ports.SignalSink
	obs    ports.Observability

	state   atomic.Int32
	vehicle domain.Vehicle
	stale   bool
}

func New(params Params, source ports.VehicleSource, sink ports.SignalSink, obs ports.Observability) *Bridge {
	return &Bridge{
		params: params,
		source: source,
		sink:   sink,
		obs:    obs,
	}
}

// State reports the current lifecycle state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Run connects both endpoints and drives the loop until ctx is cancelled.
// A source that cannot be reached, or a world with no vehicle to track, is a
// startup failure and returns an error; everything after startup is contained.
func (b *Bridge) Run(ctx context.Context) error {
	b.state.Store(int32(StateStarting))

	if err := b.source.Connect(ctx); err != nil {
		return fmt.Errorf("connect source: %w", err)
	}

	veh, err := b.source.AcquireTarget(ctx, b.params.Criterion)
	if err != nil {
		return fmt.Errorf("acquire initial target: %w", err)
	}
	b.vehicle = veh
	b.obs.LogInfo("tracking vehicle",
		ports.Field{Key: "id", Value: veh.ID},
		ports.Field{Key: "type", Value: veh.TypeID},
		ports.Field{Key: "role", Value: veh.Role})

	// Sink connectivity is not a startup requirement: publishing retries
	// at tick cadence until the endpoint appears.
	if err := b.sink.Connect(ctx); err != nil {
		b.obs.LogWarn("sink unavailable, will retry each tick",
			ports.Field{Key: "error", Value: err})
		b.obs.SetGauge("bridge_sink_connected", 0)
	} else {
		b.obs.SetGauge("bridge_sink_connected", 1)
	}

	b.state.Store(int32(StateRunning))
	for ctx.Err() == nil {
		b.tick(ctx)

		select {
		case <-ctx.Done():
		case <-time.After(b.params.UpdateInterval):
		}
	}

	b.state.Store(int32(StateShuttingDown))
	b.teardown()
	b.state.Store(int32(StateStopped))
	return nil
}

// tick runs one sampling iteration. Every failure is contained here: the
// tick's sample is dropped, never queued or retried.
func (b *Bridge) tick(ctx context.Context) {
	b.obs.IncCounter("bridge_ticks_total", 1)

	if b.stale || !b.source.IsAlive(ctx, b.vehicle.ID) {
		b.obs.LogWarn("vehicle reference lost, re-acquiring",
			ports.Field{Key: "id", Value: b.vehicle.ID})
		if !b.reacquire(ctx) {
			return
		}
	}

	vel, err := b.source.ReadVelocity(ctx, b.vehicle.ID)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrStaleHandle):
			b.stale = true
			b.skipTick("stale vehicle handle", err)
		case errors.Is(err, ports.ErrConnection):
			b.recoverSource(ctx, err)
		default:
			b.skipTick("read velocity", err)
		}
		return
	}

	speed := estimator.SpeedKMH(vel)
	rpm := estimator.EstimateRPM(speed, b.params.RPMIdle, b.params.RPMMax, b.params.MaxSpeedKMH)

	if !b.sink.Connected() {
		b.obs.IncCounter("bridge_sink_reconnects_total", 1)
		if err := b.sink.Connect(ctx); err != nil {
			// Next tick retries; no blocking loop inside the tick.
			b.skipTick("sink connect", err)
			return
		}
		b.obs.SetGauge("bridge_sink_connected", 1)
	}

	signals := []domain.Signal{
		{Path: b.params.SpeedPath, Value: speed},
		{Path: b.params.RPMPath, Value: rpm},
	}
	if err := b.sink.Publish(ctx, signals); err != nil {
		// Force a fresh connection attempt on the next tick.
		b.sink.Disconnect()
		b.obs.SetGauge("bridge_sink_connected", 0)
		b.skipTick("publish batch", err)
		return
	}

	b.obs.IncCounter("bridge_publishes_total", 1)
	b.obs.SetGauge("bridge_speed_kmh", speed)
	b.obs.SetGauge("bridge_rpm", rpm)
	b.obs.LogDebug("published",
		ports.Field{Key: "speed_kmh", Value: speed},
		ports.Field{Key: "rpm", Value: rpm})
}

// reacquire re-resolves the tracked vehicle. A missing target or an empty
// world skips the tick; a connection failure enters source recovery.
func (b *Bridge) reacquire(ctx context.Context) bool {
	veh, err := b.source.AcquireTarget(ctx, b.params.Criterion)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNoVehicles), errors.Is(err, ports.ErrTargetNotFound):
			b.skipTick("target unavailable", err)
		case errors.Is(err, ports.ErrConnection):
			b.recoverSource(ctx, err)
		default:
			b.skipTick("acquire target", err)
		}
		return false
	}

	b.vehicle = veh
	b.stale = false
	b.obs.IncCounter("bridge_target_reacquired_total", 1)
	b.obs.LogInfo("tracking vehicle",
		ports.Field{Key: "id", Value: veh.ID},
		ports.Field{Key: "type", Value: veh.TypeID},
		ports.Field{Key: "role", Value: veh.Role})
	return true
}

// recoverSource redials the simulator after a connection-level failure.
// The delay keeps the bridge from hammering an endpoint that just vanished;
// it is cancellable so shutdown latency stays bounded.
func (b *Bridge) recoverSource(ctx context.Context, cause error) {
	b.skipTick("source connection lost", cause)

	select {
	case <-ctx.Done():
		return
	case <-time.After(b.params.ReconnectDelay):
	}

	if err := b.source.Connect(ctx); err != nil {
		b.obs.LogError("source reconnect failed", err)
		return
	}

	veh, err := b.source.AcquireTarget(ctx, b.params.Criterion)
	if err != nil {
		b.obs.LogError("re-acquire after reconnect failed", err)
		b.stale = true
		return
	}
	b.vehicle = veh
	b.stale = false
	b.obs.IncCounter("bridge_target_reacquired_total", 1)
	b.obs.LogInfo("source reconnected",
		ports.Field{Key: "vehicle_id", Value: veh.ID})
}

func (b *Bridge) skipTick(reason string, err error) {
	b.obs.IncCounter("bridge_ticks_skipped_total", 1)
	b.obs.LogError(reason, err)
}

func (b *Bridge) teardown() {
	b.obs.LogInfo("stopping bridge")
	b.sink.Disconnect()
	b.obs.SetGauge("bridge_sink_connected", 0)
	if err := b.source.Close(); err != nil {
		b.obs.LogError("close source", err)
	}
}
