package workflows

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/pkg/pagination"
	"github.com/JaimeStill/countersign/pkg/query"
	"github.com/JaimeStill/countersign/pkg/repository"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Store backed by the workflows and signers tables.
// Transitions lock the workflow row with SELECT ... FOR UPDATE.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

const insertWorkflowSQL = `
	INSERT INTO workflows(
		id, title, kind, creator_name, creator_role,
		source_key, source_filename, source_content_type, source_size, source_page_count,
		current_index, status, created_at, updated_at, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

const insertSignerSQL = `
	INSERT INTO signers(
		workflow_id, slot_order, name, role, assignee, status,
		anchor_x, anchor_y, anchor_page, artifact, comment, acted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const updateWorkflowSQL = `
	UPDATE workflows
	SET current_index = $2, status = $3, updated_at = $4, completed_at = $5
	WHERE id = $1`

const updateSignerSQL = `
	UPDATE signers
	SET status = $3, artifact = $4, comment = $5, acted_at = $6
	WHERE workflow_id = $1 AND slot_order = $2`

func (s *postgresStore) Insert(ctx context.Context, w *Workflow) error {
	_, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(
			ctx, insertWorkflowSQL,
			w.ID, w.Title, w.Kind, w.Creator.Name, w.Creator.Role,
			w.Source.Key, w.Source.Filename, w.Source.ContentType, w.Source.Size, w.Source.PageCount,
			w.CurrentIndex, w.Status, w.CreatedAt, w.UpdatedAt, w.CompletedAt,
		); err != nil {
			return struct{}{}, err
		}

		for _, sg := range w.Roster {
			var x, y, page any
			if sg.Anchor != nil {
				x, y, page = sg.Anchor.X, sg.Anchor.Y, sg.Anchor.Page
			}
			if _, err := tx.ExecContext(
				ctx, insertSignerSQL,
				w.ID, sg.Order, sg.Name, sg.Role, nullString(sg.Assignee), sg.Status,
				x, y, page, sg.Artifact, sg.Comment, sg.ActedAt,
			); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func (s *postgresStore) Find(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	w, err := repository.QueryOne(ctx, s.db, q, args, scanWorkflow)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if err := loadRosters(ctx, s.db, []*Workflow{&w}); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *postgresStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Workflow], error) {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Title", "CreatorName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count workflows: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	ws, err := repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanWorkflow)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}

	refs := make([]*Workflow, len(ws))
	for i := range ws {
		refs[i] = &ws[i]
	}
	if err := loadRosters(ctx, s.db, refs); err != nil {
		return nil, err
	}

	result := pagination.NewPageResult(ws, total, page.Page, page.PageSize)
	return &result, nil
}

func (s *postgresStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM workflows GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("query workflow stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan workflow stats: %w", err)
		}
		stats.add(status, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read workflow stats: %w", err)
	}
	return &stats, nil
}

func (s *postgresStore) Transition(
	ctx context.Context,
	id uuid.UUID,
	fn func(*Workflow) error,
) (*Workflow, error) {
	q, args := query.NewBuilder(projection).BuildSingleForUpdate("ID", id)

	w, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (*Workflow, error) {
		w, err := repository.QueryOne(ctx, tx, q, args, scanWorkflow)
		if err != nil {
			return nil, err
		}
		if err := loadRosters(ctx, tx, []*Workflow{&w}); err != nil {
			return nil, err
		}

		before := w.Clone()
		if err := fn(&w); err != nil {
			return nil, err
		}

		if err := repository.ExecExpectOne(
			ctx, tx, updateWorkflowSQL,
			w.ID, w.CurrentIndex, w.Status, w.UpdatedAt, w.CompletedAt,
		); err != nil {
			return nil, err
		}

		for i, sg := range w.Roster {
			if slotUnchanged(before.Roster[i], sg) {
				continue
			}
			if err := repository.ExecExpectOne(
				ctx, tx, updateSignerSQL,
				w.ID, sg.Order, sg.Status, sg.Artifact, sg.Comment, sg.ActedAt,
			); err != nil {
				return nil, err
			}
		}

		return &w, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return w, nil
}

func loadRosters(ctx context.Context, q repository.Querier, ws []*Workflow) error {
	if len(ws) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(ws))
	byID := make(map[uuid.UUID]*Workflow, len(ws))
	for i, w := range ws {
		ids[i] = w.ID
		w.Roster = make([]Signer, 0)
		byID[w.ID] = w
	}

	sqlStr, args := query.
		NewBuilder(signerProjection).
		WhereAny("WorkflowID", ids).
		OrderByFields(signerSort).
		Build()

	rows, err := repository.QueryMany(ctx, q, sqlStr, args, scanSigner)
	if err != nil {
		return fmt.Errorf("query signers: %w", err)
	}

	for _, row := range rows {
		if w, ok := byID[row.workflowID]; ok {
			w.Roster = append(w.Roster, row.signer)
		}
	}
	return nil
}

func slotUnchanged(a, b Signer) bool {
	return a.Status == b.Status &&
		equalPtr(a.Artifact, b.Artifact) &&
		equalPtr(a.Comment, b.Comment) &&
		equalTime(a, b)
}

func equalTime(a, b Signer) bool {
	if a.ActedAt == nil || b.ActedAt == nil {
		return a.ActedAt == b.ActedAt
	}
	return a.ActedAt.Equal(*b.ActedAt)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
