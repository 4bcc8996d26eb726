package chathub

import (
	"context"
	"encoding/json"
	"lessonchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscriber opens the Redis subscription the hub listens on.
type Subscriber interface {
	SubscribeToChatChannels(ctx context.Context, patterns ...string) *redis.PubSub
}

// StartPubSubListener starts a goroutine that relays Redis Pub/Sub traffic on the chat
// channels to the hub until ctx is cancelled.
func (m *ManagerService) StartPubSubListener(ctx context.Context, s Subscriber) {
	go func() {
		pubsub := s.SubscribeToChatChannels(ctx, ChannelPattern)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := m.DeliverPayload(msg.Channel, []byte(msg.Payload)); err != nil {
					zap.S().Errorf("ERROR: Failed to decode event from %s: %v", msg.Channel, err)
				}
			}
		}
	}()
}

// DeliverPayload decodes an encoded event and hands it to the channel's subscribers.
func (m *ManagerService) DeliverPayload(channel string, payload []byte) error {
	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	m.Deliver(channel, models.WebSocketMessage{Type: ev.Type, Payload: payload})
	return nil
}

// LocalPublisher delivers published events straight to an in-process hub. It stands in for
// Redis when the server runs as a single instance.
type LocalPublisher struct {
	Hub *ManagerService
}

func (p *LocalPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.Hub.DeliverPayload(channel, payload)
}
