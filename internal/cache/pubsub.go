package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const chatChannelPrefix = "chat:conv:"

// ChatChannel returns the pub/sub channel for a conversation.
func ChatChannel(conversationID string) string {
	return chatChannelPrefix + conversationID
}

// PublishChatMessage fans a serialized message out to every subscriber of
// the conversation, across server instances.
func (c *Cache) PublishChatMessage(ctx context.Context, conversationID string, payload []byte) error {
	return c.client.Publish(ctx, ChatChannel(conversationID), payload).Err()
}

// SubscribeChat subscribes to a conversation channel. The caller must Close
// the returned subscription.
func (c *Cache) SubscribeChat(ctx context.Context, conversationID string) *redis.PubSub {
	return c.client.Subscribe(ctx, ChatChannel(conversationID))
}

// SubscribeChatPayloads subscribes to a conversation and returns its raw
// payloads. The channel is closed after the returned close func runs.
func (c *Cache) SubscribeChatPayloads(ctx context.Context, conversationID string) (<-chan []byte, func() error, error) {
	ps := c.SubscribeChat(ctx, conversationID)
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			out <- []byte(msg.Payload)
		}
	}()

	return out, ps.Close, nil
}
