package notifications

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/pkg/pagination"
	"github.com/JaimeStill/countersign/pkg/query"
	"github.com/JaimeStill/countersign/pkg/repository"
)

type postgresInbox struct {
	db *sql.DB
}

// NewPostgresInbox creates an Inbox over the notifications table.
func NewPostgresInbox(db *sql.DB) Inbox {
	return &postgresInbox{db: db}
}

func (p *postgresInbox) Insert(ctx context.Context, n Notification) error {
	q := `
		INSERT INTO notifications(id, user_ref, kind, workflow_id, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		_, err := tx.ExecContext(
			ctx, q,
			n.ID, n.UserRef, n.Kind, n.WorkflowID, n.Title, n.Message, n.Read, n.CreatedAt,
		)
		return struct{}{}, err
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func (p *postgresInbox) List(
	ctx context.Context,
	userRef string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Notification], error) {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("UserRef", userRef).
		WhereSearch(page.Search, "Title", "Message")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, p.db, pageSQL, pageArgs, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (p *postgresInbox) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	q := `
		UPDATE notifications SET read = true
		WHERE id = $1
		RETURNING id, user_ref, kind, workflow_id, title, message, read, created_at`

	n, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (Notification, error) {
		return repository.QueryOne(ctx, tx, q, []any{id}, scanNotification)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &n, nil
}

func (p *postgresInbox) MarkAllRead(ctx context.Context, userRef string) (int, error) {
	res, err := p.db.ExecContext(
		ctx,
		"UPDATE notifications SET read = true WHERE user_ref = $1 AND read = false",
		userRef,
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(n), nil
}
