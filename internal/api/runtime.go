package api

import (
	"github.com/JaimeStill/countersign/internal/config"
	"github.com/JaimeStill/countersign/internal/infrastructure"
	"github.com/JaimeStill/countersign/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination    pagination.Config
	Workflows     config.WorkflowsConfig
	Notifications config.NotificationsConfig
	MaxSourceSize int64
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			PubSub:    infra.PubSub,
		},
		Pagination:    cfg.API.Pagination,
		Workflows:     cfg.Workflows,
		Notifications: cfg.Notifications,
		MaxSourceSize: cfg.API.MaxSourceSizeBytes(),
	}
}
