package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/internal/workflows"
	"github.com/JaimeStill/countersign/pkg/pagination"
)

type repo struct {
	inbox      Inbox
	publisher  Publisher
	validate   *validator.Validate
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates a notification system. publisher may be nil, in which case
// notifications are only stored.
func New(
	inbox Inbox,
	publisher Publisher,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		inbox:      inbox,
		publisher:  publisher,
		validate:   validator.New(),
		logger:     logger.With("system", "notifications"),
		pagination: pagination,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Notify(ctx context.Context, userRef string, ev workflows.Event) error {
	if err := r.checkUser(userRef); err != nil {
		return err
	}

	n := FromEvent(userRef, ev, r.now())
	if err := r.inbox.Insert(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	r.logger.Info(
		"notification recorded",
		"id", n.ID,
		"user", userRef,
		"kind", n.Kind,
		"workflow", n.WorkflowID,
	)

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, n); err != nil {
			return fmt.Errorf("publish notification: %w", err)
		}
	}
	return nil
}

func (r *repo) List(
	ctx context.Context,
	userRef string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Notification], error) {
	if err := r.checkUser(userRef); err != nil {
		return nil, err
	}
	page.Normalize(r.pagination)
	return r.inbox.List(ctx, userRef, page, filters)
}

func (r *repo) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return r.inbox.MarkRead(ctx, id)
}

func (r *repo) MarkAllRead(ctx context.Context, userRef string) (int, error) {
	if err := r.checkUser(userRef); err != nil {
		return 0, err
	}

	n, err := r.inbox.MarkAllRead(ctx, userRef)
	if err != nil {
		return 0, err
	}

	r.logger.Info("notifications marked read", "user", userRef, "count", n)
	return n, nil
}

func (r *repo) checkUser(userRef string) error {
	if err := r.validate.Var(userRef, "required,max=200"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	return nil
}
