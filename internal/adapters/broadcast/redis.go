package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel carries score updates between instances.
const DefaultRedisChannel = "crease:score_updates"

// RedisPublisher publishes updates on a redis channel. Every instance runs
// StartRedisSubscriber so viewers on any instance see every update.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher returns a publisher on channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, update model.ScoreUpdate) error { //nolint:gocritic // hugeParam: updates travel by value
	b, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode update %s: %w", update.MatchID, err)
	}
	return p.client.Publish(ctx, p.channel, b).Err()
}

// StartRedisSubscriber relays updates from channel into local until ctx is
// done. The subscription is confirmed before it returns.
func StartRedisSubscriber(ctx context.Context, client *redis.Client, channel string, local Publisher) error {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	log := logger.Get().Named("redis-subscriber")
	ch := sub.Channel()
	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				update, err := decodeUpdate([]byte(msg.Payload))
				if err != nil {
					log.Warn(ctx, "dropping malformed update", logger.Error(err))
					continue
				}
				if err := local.Publish(ctx, update); err != nil {
					log.Warn(ctx, "local delivery failed",
						logger.String("match_id", update.MatchID),
						logger.Error(err),
					)
				}
			}
		}
	}()
	return nil
}

func decodeUpdate(b []byte) (model.ScoreUpdate, error) {
	var u model.ScoreUpdate
	if err := json.Unmarshal(b, &u); err != nil {
		return model.ScoreUpdate{}, fmt.Errorf("decode update: %w", err)
	}
	if u.MatchID == "" {
		return model.ScoreUpdate{}, fmt.Errorf("decode update: missing matchId")
	}
	return u, nil
}
