package tui

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thegridelectric/gridworks-debug-cli/internal/bus"
	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
	"github.com/thegridelectric/gridworks-debug-cli/internal/logging"
)

// Sender is the slice of *tea.Program the pump needs.
type Sender interface {
	Send(tea.Msg)
}

// Pump forwards bus traffic into the bubbletea program. It runs under
// the supervisor next to the sources.
type Pump struct {
	program   Sender
	live      <-chan *events.AnyEvent
	lifecycle <-chan *events.AnyEvent
	snapshots <-chan *message.Message
}

// NewPump subscribes to the bus topics immediately. The bus drops
// messages published before a subscriber exists, so the pump must be
// constructed before any source starts; Serve then drains the buffered
// channels.
func NewPump(ctx context.Context, b *bus.Bus, program Sender) (*Pump, error) {
	live, err := b.SubscribeEvents(ctx, bus.TopicLive)
	if err != nil {
		return nil, err
	}
	lifecycle, err := b.SubscribeEvents(ctx, bus.TopicLifecycle)
	if err != nil {
		return nil, err
	}
	snapshots, err := b.Subscribe(ctx, bus.TopicSnapshot)
	if err != nil {
		return nil, err
	}
	return &Pump{
		program:   program,
		live:      live,
		lifecycle: lifecycle,
		snapshots: snapshots,
	}, nil
}

// Serve implements suture.Service.
func (p *Pump) Serve(ctx context.Context) error {
	logger := logging.With().Str("component", "display-pump").Logger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-p.live:
			if !ok {
				return ctx.Err()
			}
			p.program.Send(EventMsg{Event: event})
		case event, ok := <-p.lifecycle:
			if !ok {
				return ctx.Err()
			}
			p.program.Send(LifecycleMsg{Event: event})
		case msg, ok := <-p.snapshots:
			if !ok {
				return ctx.Err()
			}
			snap, err := events.DecodeSnapshot(msg.Payload)
			msg.Ack()
			if err != nil {
				logger.Warn().Err(err).Msg("dropping undecodable snapshot")
				continue
			}
			p.program.Send(SnapshotMsg{Snapshot: snap})
		}
	}
}

// String names the service in supervisor logs.
func (p *Pump) String() string {
	return "display-pump"
}
