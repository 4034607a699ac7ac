package transport

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/loqui-chat/loqui/pkg/json"
	"github.com/loqui-chat/loqui/pkg/redis"
)

// Handler consumes one decoded envelope. Handlers are invoked sequentially,
// in receipt order.
type Handler func(ctx context.Context, env *Envelope)

// Subscriber is the pull side of the transport. The relay owns exactly one
// subscriber; running more than one would fan events out to multiple
// dispatchers.
type Subscriber struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

// NewSubscriber creates a subscriber for the given channel.
func NewSubscriber(client *redis.Client, channel string, log *zap.Logger) *Subscriber {
	return &Subscriber{
		client:  client,
		channel: channel,
		log:     log.With(zap.String("module", "transport")),
	}
}

// Run subscribes and consumes envelopes until ctx is cancelled, invoking
// handle once per decodable message. Connection failures are retried with
// exponential backoff; undecodable messages are logged and dropped.
func (s *Subscriber) Run(ctx context.Context, handle Handler) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry for the lifetime of the process

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pubsub := s.client.Subscribe(ctx, s.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("subscribe failed", zap.String("channel", s.channel), zap.Error(err))
			if !s.sleep(ctx, bo.NextBackOff()) {
				return ctx.Err()
			}
			continue
		}
		s.log.Info("subscribed to relay channel", zap.String("channel", s.channel))
		bo.Reset()

		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					pubsub.Close()
					return ctx.Err()
				}
				s.log.Error("pubsub receive error, resubscribing", zap.Error(err))
				break
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.log.Warn("dropping undecodable envelope", zap.Error(err), zap.String("raw", msg.Payload))
				continue
			}
			handle(ctx, &env)
		}
		pubsub.Close()
		if !s.sleep(ctx, bo.NextBackOff()) {
			return ctx.Err()
		}
	}
}

// sleep waits for d or until ctx is done; it reports whether the caller
// should keep running.
func (s *Subscriber) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
