package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// EventPublisher publishes events on "<prefix><event type>" channels.
type EventPublisher struct {
	broker Broker
	prefix string
	log    zerolog.Logger
}

func NewEventPublisher(broker Broker, prefix string, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{broker: broker, prefix: prefix, log: log}
}

func (p *EventPublisher) Channel(eventType string) string {
	return p.prefix + eventType
}

func (p *EventPublisher) Publish(ctx context.Context, ev Event) error {
	if err := p.broker.Publish(ctx, p.Channel(ev.Type), ev); err != nil {
		p.log.Error().Err(err).
			Str("event_type", ev.Type).
			Str("entity_id", ev.EntityID).
			Msg("failed to publish event")
		return err
	}
	p.log.Debug().Str("event_type", ev.Type).Str("event_id", ev.ID).Msg("event published")
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
