// Package eventpub holds authcore.EventPublisher implementations: Redis
// PUBLISH, a zap log sink and a fan-out.
package eventpub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spintune/authcore"
)

// Redis publishes each event as JSON on one channel.
type Redis struct {
	client  redis.UniversalClient
	channel string
}

func NewRedis(client redis.UniversalClient, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

func (p *Redis) Publish(ctx context.Context, event authcore.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Name, err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Name, err)
	}
	return nil
}

// Log writes each event as an info entry. Payload values are logged as is,
// so callers must not put secrets there.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (p *Log) Publish(_ context.Context, event authcore.Event) error {
	fields := make([]zap.Field, 0, 3+len(event.Payload))
	fields = append(fields,
		zap.String("event", event.Name),
		zap.String("user_id", event.UserID),
		zap.Time("occurred_at", event.OccurredAt),
	)
	for k, v := range event.Payload {
		fields = append(fields, zap.String(k, v))
	}
	p.logger.Info("domain event", fields...)
	return nil
}

// Multi hands every event to each publisher in order and joins their errors.
type Multi []authcore.EventPublisher

func (m Multi) Publish(ctx context.Context, event authcore.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ authcore.EventPublisher = (*Redis)(nil)
	_ authcore.EventPublisher = (*Log)(nil)
	_ authcore.EventPublisher = Multi(nil)
)
