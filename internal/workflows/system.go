package workflows

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/internal/files"
	"github.com/JaimeStill/countersign/pkg/pagination"
)

// System defines the public contract for drafts and workflows.
type System interface {
	Handler(maxUploadSize int64) *Handler

	Templates() []Template

	CreateDraft(ctx context.Context, cmd CreateDraftCommand) (*Draft, error)
	FindDraft(ctx context.Context, id uuid.UUID) (*Draft, error)
	DeleteDraft(ctx context.Context, id uuid.UUID) error
	AttachFile(ctx context.Context, id uuid.UUID, filename string, data []byte) (*Draft, error)
	SelectTemplate(ctx context.Context, id uuid.UUID, cmd SelectTemplateCommand) (*Draft, error)
	SetCustomRoster(ctx context.Context, id uuid.UUID, cmd SetRosterCommand) (*Draft, error)
	PlaceAnchor(ctx context.Context, id uuid.UUID, slot int, anchor Anchor) (*Draft, error)
	RenderPage(ctx context.Context, id uuid.UUID, page int) ([]byte, error)
	Submit(ctx context.Context, id uuid.UUID) (*Workflow, error)

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Workflow], error)
	Find(ctx context.Context, id uuid.UUID) (*Workflow, error)
	Stats(ctx context.Context) (*Stats, error)
	Act(ctx context.Context, id uuid.UUID, cmd ActCommand) (*Workflow, error)
}

// Notifier receives transition events after they commit.
type Notifier interface {
	Notify(ctx context.Context, userRef string, ev Event) error
}

// Files is the storage collaborator used for sources and artifacts.
type Files interface {
	UploadSource(ctx context.Context, filename string, data []byte) (*files.Stored, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Renderer draws source pages for anchor placement.
type Renderer interface {
	RenderPage(ctx context.Context, key string, page int) ([]byte, error)
}
