package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"vanish_chat_service/internal/chat/domain"
	"vanish_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// FeedPubSub definition session change-event channel
type FeedPubSub interface {
	Publish(sessionID string, event domain.FeedEvent) error
	Subscribe(ctx context.Context, sessionID string, handler func(event domain.FeedEvent)) error
}

// RedisFeedPubSub implements FeedPubSub over redis pub/sub
type RedisFeedPubSub struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisFeedPubSub create RedisFeedPubSub
func NewRedisFeedPubSub(client *redis.Client) *RedisFeedPubSub {
	return &RedisFeedPubSub{
		client: client,
		ctx:    context.Background(),
	}
}

func sessionChannel(sessionID string) string {
	return "chat:session:" + sessionID
}

// Publish serializes the event onto the session channel
func (r *RedisFeedPubSub) Publish(sessionID string, event domain.FeedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, sessionChannel(sessionID), data).Err()
}

// Subscribe listens on the session channel and calls handler per event.
// The subscription is released when ctx is canceled.
func (r *RedisFeedPubSub) Subscribe(ctx context.Context, sessionID string, handler func(event domain.FeedEvent)) error {
	channel := sessionChannel(sessionID)
	sub := r.client.Subscribe(r.ctx, channel)
	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var event domain.FeedEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					logger.Log.Errorf("feed event unmarshal error:", err)
					continue
				}
				handler(event)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
