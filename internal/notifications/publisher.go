package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/countersign/pkg/pubsub"
)

type redisPublisher struct {
	pubsub pubsub.System
	prefix string
}

// NewRedisPublisher publishes each notification as JSON on the channel
// "<prefix>:<user_ref>".
func NewRedisPublisher(ps pubsub.System, prefix string) Publisher {
	return &redisPublisher{pubsub: ps, prefix: prefix}
}

// Channel returns the channel a user's notifications are published on.
func Channel(prefix, userRef string) string {
	return prefix + ":" + userRef
}

func (p *redisPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	if _, err := p.pubsub.Publish(ctx, Channel(p.prefix, n.UserRef), payload); err != nil {
		return err
	}
	return nil
}
