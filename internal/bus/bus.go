// Package bus is the in-process pub/sub connecting the event source
// adapters, the sync engine, and the display layer. It wraps a Watermill
// gochannel Pub/Sub so every hop carries the same serialized event
// payloads the wire does.
package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
)

// Topics.
const (
	// TopicLive carries decoded remote events.
	TopicLive = "events.live"

	// TopicLifecycle carries gwd's internal activity events.
	TopicLifecycle = "events.lifecycle"

	// TopicSnapshot carries latest-telemetry snapshot documents.
	TopicSnapshot = "events.snapshot"
)

// Bus is the in-process event bus.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New creates a bus. Subscribers get a buffered channel so a stalled
// display cannot back-pressure the MQTT client.
func New() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			NewWatermillLogger(),
		),
	}
}

// PublishEvent serializes the event onto the topic.
func (b *Bus) PublishEvent(topic string, event *events.AnyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for bus: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// PublishSnapshot serializes the snapshot onto TopicSnapshot.
func (b *Bus) PublishSnapshot(snap *events.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot for bus: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicSnapshot, msg); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// Subscribe returns the raw message channel for a topic. Messages must be
// acked by the consumer.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return ch, nil
}

// SubscribeEvents returns a channel of decoded events for a topic,
// acking each message after decode. Undecodable payloads are dropped;
// only gwd publishes on the bus, so they indicate a bug.
func (b *Bus) SubscribeEvents(ctx context.Context, topic string) (<-chan *events.AnyEvent, error) {
	raw, err := b.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := make(chan *events.AnyEvent)
	go func() {
		defer close(out)
		for msg := range raw {
			var event events.AnyEvent
			err := json.Unmarshal(msg.Payload, &event)
			msg.Ack()
			if err != nil {
				continue
			}
			select {
			case out <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts down the pub/sub; subscriber channels are closed.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
