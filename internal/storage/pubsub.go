package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publish sends an encoded event to a Redis Pub/Sub channel.
func (s *Service) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.Redis.Publish(ctx, channel, payload).Err()
}

// SubscribeToChatChannels pattern-subscribes to the room and user channels.
func (s *Service) SubscribeToChatChannels(ctx context.Context, patterns ...string) *redis.PubSub {
	return s.Redis.PSubscribe(ctx, patterns...)
}

// OpenRedis builds the client and checks the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
