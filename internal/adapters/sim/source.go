// Package sim implements the VehicleSource port against the simulator's
// HTTP query API (actor enumeration, liveness, velocity reads).
package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
	"github.com/tri2510/carla-vss-bridge/internal/ports"
)

// Config captures the runtime details required to query the simulator.
type Config struct {
	Host    string        `yaml:"host" env:"CARLA_SERVER_HOST"`
	Port    int           `yaml:"port" env:"CARLA_SERVER_PORT"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 2000
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Source is a stateless query client over the simulator session. It never
// retries; the orchestrator owns reconnect and re-acquisition policy.
type Source struct {
	cfg     Config
	base    string
	client  *http.Client
	mu      sync.Mutex
	session bool
}

func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{
		cfg:    cfg,
		base:   fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Connect verifies the simulator answers on its status endpoint. It does not
// select a vehicle.
func (s *Source) Connect(ctx context.Context) error {
	var status struct {
		Ready bool `json:"ready"`
	}
	if err := s.getJSON(ctx, "/status", &status); err != nil {
		return fmt.Errorf("%w: simulator at %s: %v", ports.ErrConnection, s.base, err)
	}

	s.mu.Lock()
	s.session = true
	s.mu.Unlock()
	return nil
}

// AcquireTarget resolves the tracked vehicle. An explicit ID is looked up
// directly and fails hard when absent. A role label matches the first vehicle
// carrying it. When neither applies, any vehicle in the world will do; the
// permissive fallback is deliberate operator convenience.
func (s *Source) AcquireTarget(ctx context.Context, criterion ports.TargetCriterion) (domain.Vehicle, error) {
	if !s.isConnected() {
		return domain.Vehicle{}, ports.ErrNotConnected
	}

	if criterion.ID != 0 {
		veh, err := s.fetchActor(ctx, criterion.ID)
		if err != nil {
			if errors.Is(err, ports.ErrStaleHandle) {
				return domain.Vehicle{}, fmt.Errorf("%w: id %d", ports.ErrTargetNotFound, criterion.ID)
			}
			return domain.Vehicle{}, err
		}
		return veh, nil
	}

	var actors []domain.Vehicle
	if err := s.getJSON(ctx, "/actors?type=vehicle", &actors); err != nil {
		return domain.Vehicle{}, fmt.Errorf("%w: list actors: %v", ports.ErrConnection, err)
	}

	if criterion.Role != "" {
		for _, veh := range actors {
			if veh.Role == criterion.Role {
				return veh, nil
			}
		}
	}
	if len(actors) > 0 {
		return actors[0], nil
	}
	return domain.Vehicle{}, ports.ErrNoVehicles
}

// IsAlive probes the tracked vehicle. Any query failure counts as not alive
// so the orchestrator re-acquires rather than reading a dead actor.
func (s *Source) IsAlive(ctx context.Context, id int) bool {
	if !s.isConnected() {
		return false
	}
	veh, err := s.fetchActor(ctx, id)
	return err == nil && veh.Alive
}

// ReadVelocity reads the current velocity vector. A vehicle the simulator no
// longer knows yields ErrStaleHandle rather than stale data.
func (s *Source) ReadVelocity(ctx context.Context, id int) (domain.Velocity, error) {
	if !s.isConnected() {
		return domain.Velocity{}, ports.ErrNotConnected
	}

	var vel domain.Velocity
	err := s.getJSON(ctx, fmt.Sprintf("/actors/%d/velocity", id), &vel)
	switch {
	case err == nil:
		return vel, nil
	case errors.Is(err, errNotFound):
		return domain.Velocity{}, fmt.Errorf("%w: id %d", ports.ErrStaleHandle, id)
	default:
		return domain.Velocity{}, fmt.Errorf("%w: read velocity: %v", ports.ErrConnection, err)
	}
}

// Close releases the session. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	s.session = false
	s.mu.Unlock()
	s.client.CloseIdleConnections()
	return nil
}

func (s *Source) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Source) fetchActor(ctx context.Context, id int) (domain.Vehicle, error) {
	var veh domain.Vehicle
	err := s.getJSON(ctx, fmt.Sprintf("/actors/%d", id), &veh)
	switch {
	case err == nil:
		return veh, nil
	case errors.Is(err, errNotFound):
		return domain.Vehicle{}, fmt.Errorf("%w: id %d", ports.ErrStaleHandle, id)
	default:
		return domain.Vehicle{}, fmt.Errorf("%w: fetch actor: %v", ports.ErrConnection, err)
	}
}

var errNotFound = errors.New("not found")

func (s *Source) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return errNotFound
	default:
		return fmt.Errorf("unexpected status %s for %s", resp.Status, path)
	}
}

var _ ports.VehicleSource = (*Source)(nil)
