// Package vss implements the SignalSink port against an MQTT-based
// telemetry-ingestion endpoint. Each tick's signals travel as one JSON
// document on one topic, so a batch is accepted or lost as a unit.
package vss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
	"github.com/tri2510/carla-vss-bridge/internal/ports"
)

// Config captures the runtime details required to open the sink session.
type Config struct {
	Host           string        `yaml:"host" env:"KUKSA_HOST"`
	Port           int           `yaml:"port" env:"KUKSA_PORT"`
	Topic          string        `yaml:"topic"`
	QoS            byte          `yaml:"qos"`
	ClientID       string        `yaml:"client_id"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 55555
	}
	if c.Topic == "" {
		c.Topic = "vss/current"
	}
	if c.ClientID == "" {
		// Unique suffix so a restarted bridge cannot steal a lingering session.
		c.ClientID = "carla-vss-bridge-" + uuid.NewString()[:8]
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.QoS > 2 {
		return fmt.Errorf("invalid qos %d", c.QoS)
	}
	return nil
}

// batch is the wire form of one tick's signals.
type batch struct {
	Timestamp time.Time          `json:"ts"`
	Values    map[string]float64 `json:"values"`
}

// MQTTSink publishes signal batches over MQTT. Auto-reconnect and connect
// retry are disabled: the orchestrator owns all retry policy, and two
// competing retry timers is exactly the failure mode that design avoids.
type MQTTSink struct {
	cfg    Config
	client mqtt.Client
	now    func() time.Time

	mu        sync.Mutex
	connected bool
}

func NewMQTTSink(cfg Config) (*MQTTSink, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false)

	return &MQTTSink{
		cfg:    cfg,
		client: mqtt.NewClient(opts),
		now:    time.Now,
	}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect opens the session. One attempt, no retry.
func (s *MQTTSink) Connect(ctx context.Context) error {
	if s.Connected() {
		return nil
	}

	token := s.client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		// Abandon the in-flight attempt. A handshake that completes after
		// this deadline would otherwise leave the client connected while the
		// sink reports disconnected, and every later Connect would be
		// rejected as a duplicate.
		s.client.Disconnect(0)
		return fmt.Errorf("%w: sink connect timed out after %s", ports.ErrConnection, s.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: sink connect: %v", ports.ErrConnection, err)
	}
	if err := ctx.Err(); err != nil {
		s.client.Disconnect(0)
		return err
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Publish sends all signals as one batch. On failure the sink transitions to
// disconnected; the caller decides when to reconnect.
func (s *MQTTSink) Publish(ctx context.Context, signals []domain.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Connected() {
		return ports.ErrNotConnected
	}
	if len(signals) == 0 {
		return nil
	}

	msg := batch{Timestamp: s.now().UTC(), Values: make(map[string]float64, len(signals))}
	for _, sig := range signals {
		msg.Values[sig.Path] = sig.Value
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: marshal batch: %v", ports.ErrPublish, err)
	}

	token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, false, payload)
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		s.markDisconnected()
		return fmt.Errorf("%w: publish timed out", ports.ErrPublish)
	}
	if err := token.Error(); err != nil {
		s.markDisconnected()
		return fmt.Errorf("%w: %v", ports.ErrPublish, err)
	}
	// The broker acked the batch; a cancellation that raced in afterwards
	// does not unmake the delivery.
	return nil
}

// Disconnect closes the session. Safe to call when already disconnected.
func (s *MQTTSink) Disconnect() {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if wasConnected {
		s.client.Disconnect(250)
	}
}

func (s *MQTTSink) markDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.client.Disconnect(0)
}

var _ ports.SignalSink = (*MQTTSink)(nil)
