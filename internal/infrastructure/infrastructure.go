// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, pub/sub) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/countersign/internal/config"
	"github.com/JaimeStill/countersign/pkg/database"
	"github.com/JaimeStill/countersign/pkg/lifecycle"
	"github.com/JaimeStill/countersign/pkg/pubsub"
	"github.com/JaimeStill/countersign/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// PubSub is nil when no Redis address is configured.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	PubSub    pubsub.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	infra := &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
	}

	if cfg.Notifications.PublishEnabled() {
		ps, err := pubsub.New(&pubsub.Config{
			Addr:     cfg.Notifications.RedisAddr,
			Password: cfg.Notifications.RedisPassword,
			DB:       cfg.Notifications.RedisDB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("pubsub init failed: %w", err)
		}
		infra.PubSub = ps
	}

	return infra, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if i.PubSub != nil {
		if err := i.PubSub.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("pubsub start failed: %w", err)
		}
	}
	return nil
}
