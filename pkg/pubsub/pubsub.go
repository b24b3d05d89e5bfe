// Package pubsub provides Redis channel publishing with lifecycle coordination.
package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/JaimeStill/countersign/pkg/lifecycle"
)

// System publishes payloads to Redis channels.
type System interface {
	// Start registers a startup ping and a shutdown close with the coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Publish sends payload to channel and returns the number of receivers.
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

type client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New creates a publisher for the given configuration. No connection is
// made until the first command or Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pubsub config: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &client{
		rdb:    rdb,
		logger: logger.With("system", "pubsub"),
	}, nil
}

func (c *client) Start(lc *lifecycle.Coordinator) error {
	c.logger.Info("starting pubsub client")

	lc.OnStartup(func() {
		if err := c.rdb.Ping(lc.Context()).Err(); err != nil {
			c.logger.Error("redis ping failed", "error", err)
			return
		}
		c.logger.Info("redis connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		c.logger.Info("closing redis connection")

		if err := c.rdb.Close(); err != nil {
			c.logger.Error("redis close failed", "error", err)
			return
		}

		c.logger.Info("redis connection closed")
	})

	return nil
}

func (c *client) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	n, err := c.rdb.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", channel, err)
	}
	return n, nil
}
