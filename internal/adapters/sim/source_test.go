package sim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
	"github.com/tri2510/carla-vss-bridge/internal/ports"
)

// fakeSim serves the subset of the simulator query API the Source uses.
type fakeSim struct {
	vehicles   []domain.Vehicle
	velocities map[int]domain.Velocity
}

func (f *fakeSim) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"ready": true})
	})
	mux.HandleFunc("/actors", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(f.vehicles)
	})
	mux.HandleFunc("/actors/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/actors/")
		parts := strings.Split(rest, "/")
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if len(parts) == 2 && parts[1] == "velocity" {
			vel, ok := f.velocities[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(vel)
			return
		}
		for _, veh := range f.vehicles {
			if veh.ID == id {
				json.NewEncoder(w).Encode(veh)
				return
			}
		}
		http.NotFound(w, r)
	})
	return mux
}

func newTestSource(t *testing.T, sim *fakeSim) *Source {
	t.Helper()
	srv := httptest.NewServer(sim.handler())
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())

	src, err := NewSource(Config{Host: u.Hostname(), Port: port})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if err := src.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return src
}

func TestAcquireTargetExplicitID(t *testing.T) {
	sim := &fakeSim{vehicles: []domain.Vehicle{
		{ID: 7, TypeID: "vehicle.tesla.model3", Role: "npc", Alive: true},
		{ID: 9, TypeID: "vehicle.audi.tt", Role: "hero", Alive: true},
	}}
	src := newTestSource(t, sim)

	veh, err := src.AcquireTarget(context.Background(), ports.TargetCriterion{ID: 7, Role: "hero"})
	if err != nil {
		t.Fatalf("AcquireTarget: %v", err)
	}
	if veh.ID != 7 {
		t.Fatalf("expected explicit id to win over role, got id %d", veh.ID)
	}
}

func TestAcquireTargetExplicitIDMissingFailsHard(t *testing.T) {
	sim := &fakeSim{vehicles: []domain.Vehicle{
		{ID: 9, Role: "hero", Alive: true},
	}}
	src := newTestSource(t, sim)

	// No fallback when an explicit id is requested and absent.
	_, err := src.AcquireTarget(context.Background(), ports.TargetCriterion{ID: 42})
	if !errors.Is(err, ports.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestAcquireTargetRoleScan(t *testing.T) {
	sim := &fakeSim{vehicles: []domain.Vehicle{
		{ID: 3, Role: "npc", Alive: true},
		{ID: 5, Role: "hero", Alive: true},
		{ID: 8, Role: "hero", Alive: true},
	}}
	src := newTestSource(t, sim)

	veh, err := src.AcquireTarget(context.Background(), ports.TargetCriterion{Role: "hero"})
	if err != nil {
		t.Fatalf("AcquireTarget: %v", err)
	}
	if veh.ID != 5 {
		t.Fatalf("expected first role match (id 5), got id %d", veh.ID)
	}
}

func TestAcquireTargetFallsBackToArbitraryVehicle(t *testing.T) {
	sim := &fakeSim{vehicles: []domain.Vehicle{
		{ID: 3, Role: "npc", Alive: true},
		{ID: 4, Role: "npc", Alive: true},
	}}
	src := newTestSource(t, sim)

	veh, err := src.AcquireTarget(context.Background(), ports.TargetCriterion{Role: "hero"})
	if err != nil {
		t.Fatalf("expected fallback to an arbitrary vehicle, got %v", err)
	}
	if veh.ID != 3 {
		t.Fatalf("expected first enumerated vehicle (id 3), got id %d", veh.ID)
	}
}

func TestAcquireTargetNoVehicles(t *testing.T) {
	src := newTestSource(t, &fakeSim{})

	_, err := src.AcquireTarget(context.Background(), ports.TargetCriterion{Role: "hero"})
	if !errors.Is(err, ports.ErrNoVehicles) {
		t.Fatalf("expected ErrNoVehicles, got %v", err)
	}
}

func TestReadVelocity(t *testing.T) {
	sim := &fakeSim{
		vehicles:   []domain.Vehicle{{ID: 5, Role: "hero", Alive: true}},
		velocities: map[int]domain.Velocity{5: {X: 3, Y: 4}},
	}
	src := newTestSource(t, sim)

	vel, err := src.ReadVelocity(context.Background(), 5)
	if err != nil {
		t.Fatalf("ReadVelocity: %v", err)
	}
	if vel.X != 3 || vel.Y != 4 || vel.Z != 0 {
		t.Fatalf("unexpected velocity %+v", vel)
	}
}

func TestReadVelocityStaleHandle(t *testing.T) {
	src := newTestSource(t, &fakeSim{})

	_, err := src.ReadVelocity(context.Background(), 99)
	if !errors.Is(err, ports.ErrStaleHandle) {
		t.Fatalf("expected ErrStaleHandle, got %v", err)
	}
}

func TestIsAlive(t *testing.T) {
	sim := &fakeSim{vehicles: []domain.Vehicle{
		{ID: 1, Alive: true},
		{ID: 2, Alive: false},
	}}
	src := newTestSource(t, sim)
	ctx := context.Background()

	if !src.IsAlive(ctx, 1) {
		t.Fatalf("expected vehicle 1 to be alive")
	}
	if src.IsAlive(ctx, 2) {
		t.Fatalf("expected vehicle 2 to be dead")
	}
	if src.IsAlive(ctx, 99) {
		t.Fatalf("expected unknown vehicle to be reported dead")
	}
}

func TestOperationsRequireConnect(t *testing.T) {
	src, err := NewSource(Config{Host: "127.0.0.1", Port: 2000})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	if _, err := src.AcquireTarget(context.Background(), ports.TargetCriterion{}); !errors.Is(err, ports.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := src.ReadVelocity(context.Background(), 1); !errors.Is(err, ports.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectRefused(t *testing.T) {
	// Port 1 is essentially never listening.
	src, err := NewSource(Config{Host: "127.0.0.1", Port: 1})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if err := src.Connect(context.Background()); !errors.Is(err, ports.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}
