package workflows

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/pkg/pagination"
)

// Store persists workflows. Every method may block on I/O.
//
// Transition is the only mutation path after Insert. It runs fn against a
// private copy of the workflow while holding that workflow's exclusive lock
// and persists the copy only when fn returns nil. Concurrent transitions on
// the same workflow serialize; the later caller sees the earlier one's result.
type Store interface {
	Insert(ctx context.Context, w *Workflow) error
	Find(ctx context.Context, id uuid.UUID) (*Workflow, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Workflow], error)
	Stats(ctx context.Context) (*Stats, error)
	Transition(ctx context.Context, id uuid.UUID, fn func(*Workflow) error) (*Workflow, error)
}
