// Package vssbridge wires the default adapters into a runnable bridge and
// exposes simple lifecycle hooks for embedding it inside any Go service.
package vssbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tri2510/carla-vss-bridge/internal/adapters/observability"
	"github.com/tri2510/carla-vss-bridge/internal/adapters/sim"
	"github.com/tri2510/carla-vss-bridge/internal/adapters/vss"
	"github.com/tri2510/carla-vss-bridge/internal/app/bridge"
	"github.com/tri2510/carla-vss-bridge/internal/app/config"
	"github.com/tri2510/carla-vss-bridge/internal/domain"
	"github.com/tri2510/carla-vss-bridge/internal/ports"
)

// Re-exported so embedders only import this package.
type (
	Config        = config.Config
	Signal        = domain.Signal
	VehicleSource = ports.VehicleSource
	SignalSink    = ports.SignalSink
	Observability = ports.Observability
)

// LoadConfig resolves a configuration file plus environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewCallbackSink adapts a function into a SignalSink for embedding.
var NewCallbackSink = vss.NewCallbackSink

// Option customizes the dependencies used by Runtime.
type Option func(*overrides)

type overrides struct {
	source ports.VehicleSource
	sink   ports.SignalSink
	obs    ports.Observability
}

// WithSource injects a custom vehicle source (replay files, simulators, tests).
func WithSource(s ports.VehicleSource) Option {
	return func(o *overrides) { o.source = s }
}

// WithSink injects a custom signal sink so signals can go to any backend.
func WithSink(s ports.SignalSink) Option {
	return func(o *overrides) { o.sink = s }
}

// WithObservability plugs in a custom metrics/logging backend.
func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) { o.obs = obs }
}

// Runtime owns the bridge loop and the metrics HTTP server.
type Runtime struct {
	cfg        *config.Config
	obs        ports.Observability
	source     ports.VehicleSource
	sink       ports.SignalSink
	loop       *bridge.Bridge
	metricsSrv *http.Server
}

// NewRuntime bootstraps the default adapters (simulator HTTP source, MQTT
// sink, Prometheus observability). Options override any dependency.
func NewRuntime(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	obs := ov.obs
	if obs == nil {
		obs = observability.NewPromObs(observability.ParseLevel(cfg.LogLevel))
	}

	source := ov.source
	if source == nil {
		var err error
		source, err = sim.NewSource(cfg.Carla)
		if err != nil {
			return nil, err
		}
	}

	sink := ov.sink
	if sink == nil {
		var err error
		sink, err = vss.NewMQTTSink(cfg.Kuksa)
		if err != nil {
			return nil, err
		}
	}

	params := bridge.Params{
		Criterion:      ports.TargetCriterion{ID: cfg.Vehicle.ID, Role: cfg.Vehicle.Role},
		SpeedPath:      cfg.Signals.SpeedPath,
		RPMPath:        cfg.Signals.RPMPath,
		MaxSpeedKMH:    cfg.Mapping.MaxSpeedKMH,
		RPMIdle:        cfg.Mapping.RPMIdle,
		RPMMax:         cfg.Mapping.RPMMax,
		UpdateInterval: cfg.Bridge.UpdateInterval,
		ReconnectDelay: cfg.Bridge.ReconnectDelay,
	}

	return &Runtime{
		cfg:    cfg,
		obs:    obs,
		source: source,
		sink:   sink,
		loop:   bridge.New(params, source, sink, obs),
	}, nil
}

// Run starts the metrics server and blocks on the bridge loop until ctx is
// cancelled or startup fails. The loop's teardown has already run by the
// time Run returns; only the metrics server remains to stop.
func (r *Runtime) Run(ctx context.Context) error {
	r.startMetrics()

	runErr := r.loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, r.stopMetrics(shutdownCtx))
}

func (r *Runtime) startMetrics() {
	if r.cfg.Metrics.Addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics server exited", err)
		}
	}()
}

func (r *Runtime) stopMetrics(ctx context.Context) error {
	if r.metricsSrv == nil {
		return nil
	}
	if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
