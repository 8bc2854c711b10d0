// Package mqttsource subscribes to the Gridworks MQTT broker and feeds
// decoded live events onto the bus. It runs as a suture service under the
// sources supervisor.
package mqttsource

import (
	"context"
	"errors"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thegridelectric/gridworks-debug-cli/internal/bus"
	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
	"github.com/thegridelectric/gridworks-debug-cli/internal/logging"
)

// Service is the live MQTT event source.
type Service struct {
	cfg    config.MQTTConfig
	bus    *bus.Bus
	logger zerolog.Logger
}

// New creates the MQTT source service.
func New(cfg config.MQTTConfig, b *bus.Bus) *Service {
	return &Service{
		cfg:    cfg,
		bus:    b,
		logger: logging.With().Str("component", "mqtt").Logger(),
	}
}

// Serve implements suture.Service. It connects to the broker, subscribes
// to the configured topic, and blocks until the context is canceled.
// Reconnection is delegated to the paho client, bounded by the configured
// reconnect delay ceiling; connection state changes surface as lifecycle
// events on the bus.
func (s *Service) Serve(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL()).
		SetClientID("gwd-" + uuid.NewString()[:8]).
		SetKeepAlive(s.cfg.Keepalive()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(s.cfg.MinDelay()).
		SetMaxReconnectInterval(s.cfg.MaxDelay()).
		SetOrderMatters(false)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		token := client.Subscribe(s.cfg.Topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			s.handlePayload(msg.Topic(), msg.Payload())
		})
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				s.logger.Error().Err(err).Str("topic", s.cfg.Topic).Msg("subscribe failed")
				return
			}
			s.publishLifecycle(events.NewLifecycle(events.TypeMQTTSubscribed, s.cfg.Hostname, map[string]any{
				"Topic": s.cfg.Topic,
			}))
		}()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.publishLifecycle(events.NewLifecycle(events.TypeMQTTConnLost, s.cfg.Hostname, map[string]any{
			"Error": err.Error(),
		}))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	// With connect retry enabled the token resolves on the first
	// successful connection; wait for it or for shutdown.
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect to %s: %w", s.cfg.BrokerURL(), err)
		}
		s.logger.Info().Str("broker", s.cfg.BrokerURL()).Str("topic", s.cfg.Topic).Msg("connected")
	case <-ctx.Done():
		client.Disconnect(250)
		return ctx.Err()
	}

	<-ctx.Done()
	client.Disconnect(250)
	s.logger.Info().Msg("disconnected")
	return ctx.Err()
}

// handlePayload routes one broker payload: snapshots to the snapshot
// topic, events to the live topic, parse failures to the activity panel.
func (s *Service) handlePayload(topic string, payload []byte) {
	if events.IsSnapshotMessage(payload) {
		snap, err := events.DecodeSnapshot(payload)
		if err != nil {
			s.publishParseError(topic, err)
			return
		}
		if err := s.bus.PublishSnapshot(snap); err != nil {
			s.logger.Error().Err(err).Msg("publish snapshot")
		}
		return
	}

	event, err := events.Decode(payload)
	if err != nil {
		if errors.Is(err, events.ErrNotAnEvent) {
			s.logger.Trace().Str("topic", topic).Msg("ignoring non-event message")
			return
		}
		s.publishParseError(topic, err)
		return
	}
	if err := s.bus.PublishEvent(bus.TopicLive, event); err != nil {
		s.logger.Error().Err(err).Msg("publish live event")
	}
}

func (s *Service) publishParseError(topic string, err error) {
	s.publishLifecycle(events.NewLifecycle(events.TypeMQTTParseError, s.cfg.Hostname, map[string]any{
		"Topic": topic,
		"Error": err.Error(),
	}))
}

func (s *Service) publishLifecycle(event *events.AnyEvent) {
	if err := s.bus.PublishEvent(bus.TopicLifecycle, event); err != nil {
		s.logger.Error().Err(err).Msg("publish lifecycle event")
	}
}

// String names the service in supervisor logs.
func (s *Service) String() string {
	return "mqtt-source(" + s.cfg.BrokerURL() + ")"
}
