package events

import (
	"context"
	"time"
)

// Event is a domain notification such as "user.created".
type Event struct {
	Name       string            `json:"name"`
	UserID     string            `json:"user_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// Publisher delivers events to an external channel.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoOpPublisher drops every event.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, Event) error { return nil }

// ChannelPublisher writes events into a buffered channel. It is meant for
// tests and in-process consumers.
type ChannelPublisher struct {
	events chan Event
}

func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelPublisher{events: make(chan Event, buffer)}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case p.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ChannelPublisher) Events() <-chan Event {
	return p.events
}
