package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/internal/workflows"
	"github.com/JaimeStill/countersign/pkg/pagination"
)

// System defines the public contract for notification operations.
// It satisfies workflows.Notifier.
type System interface {
	Handler() *Handler

	Notify(ctx context.Context, userRef string, ev workflows.Event) error
	List(ctx context.Context, userRef string, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Notification], error)
	MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error)
	MarkAllRead(ctx context.Context, userRef string) (int, error)
}

// Publisher forwards stored notifications to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}
