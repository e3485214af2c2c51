package vss

import (
	"context"
	"fmt"
	"sync"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
	"github.com/tri2510/carla-vss-bridge/internal/ports"
)

// BatchFunc receives one tick's signal batch.
type BatchFunc func([]domain.Signal) error

// NewCallbackSink adapts a BatchFunc into a full ports.SignalSink so callers
// can plug arbitrary functions without defining structs. Connect/Disconnect
// only flip the session flag; Publish delegates to the function.
func NewCallbackSink(name string, fn BatchFunc) ports.SignalSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

type callbackSink struct {
	name string
	fn   BatchFunc

	mu        sync.Mutex
	connected bool
}

func (s *callbackSink) Name() string { return s.name }

func (s *callbackSink) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return ctx.Err()
}

func (s *callbackSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *callbackSink) Disconnect() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *callbackSink) Publish(_ context.Context, signals []domain.Signal) error {
	if !s.Connected() {
		return ports.ErrNotConnected
	}
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(signals) == 0 {
		return nil
	}
	if err := s.fn(signals); err != nil {
		s.Disconnect()
		return fmt.Errorf("%w: %v", ports.ErrPublish, err)
	}
	return nil
}
