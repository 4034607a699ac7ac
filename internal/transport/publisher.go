package transport

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/loqui-chat/loqui/pkg/json"
	"github.com/loqui-chat/loqui/pkg/redis"
)

// Publisher is the push side of the transport. It is safe for concurrent use
// by multiple request handlers.
type Publisher struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

// NewPublisher creates a publisher emitting on the given channel.
func NewPublisher(client *redis.Client, channel string, log *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		log:     log.With(zap.String("module", "transport")),
	}
}

// Emit validates, encodes, and publishes one envelope. Delivery to the relay
// is best-effort: if no relay is subscribed the event is lost.
func (p *Publisher) Emit(ctx context.Context, env *Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	p.log.Debug("emitted envelope",
		zap.String("directive", string(env.Directive)),
		zap.String("topic", env.Topic),
		zap.String("origin", env.Origin),
	)
	return nil
}
