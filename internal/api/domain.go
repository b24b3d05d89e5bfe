package api

import (
	"github.com/JaimeStill/countersign/internal/config"
	"github.com/JaimeStill/countersign/internal/files"
	"github.com/JaimeStill/countersign/internal/notifications"
	"github.com/JaimeStill/countersign/internal/render"
	"github.com/JaimeStill/countersign/internal/workflows"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Files         files.System
	Notifications notifications.System
	Workflows     workflows.System
}

// NewDomain creates all domain systems from the API runtime.
// The workflows.store setting selects PostgreSQL or in-process storage
// for both workflows and notification inboxes.
func NewDomain(runtime *Runtime) *Domain {
	filesSystem := files.New(
		runtime.Storage,
		runtime.Logger,
		runtime.MaxSourceSize,
	)

	var (
		store workflows.Store
		inbox notifications.Inbox
	)
	switch runtime.Workflows.Store {
	case config.StoreMemory:
		store = workflows.NewMemoryStore()
		inbox = notifications.NewMemoryInbox()
	default:
		store = workflows.NewPostgresStore(runtime.Database.Connection())
		inbox = notifications.NewPostgresInbox(runtime.Database.Connection())
	}

	var publisher notifications.Publisher
	if runtime.PubSub != nil {
		publisher = notifications.NewRedisPublisher(runtime.PubSub, runtime.Notifications.ChannelPrefix)
	}

	notificationsSystem := notifications.New(
		inbox,
		publisher,
		runtime.Logger,
		runtime.Pagination,
	)

	workflowsSystem := workflows.New(
		store,
		filesSystem,
		render.New(filesSystem, runtime.Logger),
		notificationsSystem,
		runtime.Logger,
		workflows.Config{
			DraftTTL:      runtime.Workflows.DraftTTLDuration(),
			Policy:        workflows.NewArtifactPolicy(runtime.Workflows.ArtifactRequired),
			Pagination:    runtime.Pagination,
			DispatchLimit: runtime.Notifications.DispatchLimit,
		},
	)

	return &Domain{
		Files:         filesSystem,
		Notifications: notificationsSystem,
		Workflows:     workflowsSystem,
	}
}
