package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/pkg/pagination"
)

// Inbox persists notifications.
type Inbox interface {
	Insert(ctx context.Context, n Notification) error
	List(ctx context.Context, userRef string, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Notification], error)
	MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error)
	// MarkAllRead marks every unread notification for userRef and returns the count.
	MarkAllRead(ctx context.Context, userRef string) (int, error)
}
