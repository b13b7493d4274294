package redis

import (
	"context"
	"fmt"
	"time"

	"chat-messaging-demo/backend/pkg/config"

	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client. Besides plain key/value access it
// carries the conversation change-feed pub/sub used by MessageStream.
type Client struct {
	client *redis.Client
}

// NewClient builds a client from application configuration.
func NewClient() *Client {
	cfg := config.Get()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &Client{client: client}
}

// Ping verifies connectivity.
func (r *Client) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Set stores a value with expiration.
func (r *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value.
func (r *Client) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Del removes a key.
func (r *Client) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Close releases the underlying connection pool.
func (r *Client) Close() error {
	return r.client.Close()
}

// conversationChannel is the pub/sub channel carrying change
// notifications for one conversation.
func conversationChannel(conversationID string) string {
	return fmt.Sprintf("chat:feed:%s", conversationID)
}

// PublishChange notifies subscribers that a conversation's message list
// changed. The payload is the id of the message that triggered the
// change; subscribers re-derive the full list from the store.
func (r *Client) PublishChange(ctx context.Context, conversationID, messageID string) error {
	return r.client.Publish(ctx, conversationChannel(conversationID), messageID).Err()
}

// SubscribeChanges opens a pub/sub subscription on a conversation's
// change channel. The returned channel closes when ctx is cancelled or
// the transport fails; a transport failure is reported through errFn.
func (r *Client) SubscribeChanges(ctx context.Context, conversationID string, errFn func(error)) (<-chan string, func(), error) {
	sub := r.client.Subscribe(ctx, conversationChannel(conversationID))

	// Force the subscription handshake so transport failures surface here
	// instead of as a silent empty channel.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, err
	}

	out := make(chan string)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					if errFn != nil {
						errFn(fmt.Errorf("redis subscription closed for conversation %s", conversationID))
					}
					return
				}
				select {
				case out <- msg.Payload:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		close(done)
		sub.Close()
	}
	return out, cancel, nil
}
