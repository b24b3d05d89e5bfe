package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/countersign/internal/files"
	"github.com/JaimeStill/countersign/pkg/pagination"
)

// Config carries the tunables for a workflow System.
type Config struct {
	DraftTTL      time.Duration
	Policy        ArtifactPolicy
	Pagination    pagination.Config
	DispatchLimit int
}

type service struct {
	store      Store
	drafts     *drafts
	files      Files
	renderer   Renderer
	notifier   Notifier
	policy     ArtifactPolicy
	pagination pagination.Config
	limit      int
	logger     *slog.Logger
	now        func() time.Time
}

// New creates the workflow System over the given store and collaborators.
func New(
	store Store,
	fs Files,
	renderer Renderer,
	notifier Notifier,
	logger *slog.Logger,
	cfg Config,
) System {
	limit := cfg.DispatchLimit
	if limit < 1 {
		limit = 1
	}

	return &service{
		store:      store,
		drafts:     newDrafts(cfg.DraftTTL),
		files:      fs,
		renderer:   renderer,
		notifier:   notifier,
		policy:     cfg.Policy,
		pagination: cfg.Pagination,
		limit:      limit,
		logger:     logger.With("system", "workflows"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Handler(maxUploadSize int64) *Handler {
	return NewHandler(s, s.logger, s.pagination, maxUploadSize)
}

func (s *service) Templates() []Template {
	return Templates()
}

func (s *service) CreateDraft(ctx context.Context, cmd CreateDraftCommand) (*Draft, error) {
	d, err := NewDraft(cmd, s.now())
	if err != nil {
		return nil, err
	}

	s.drafts.put(d)
	s.logger.Info("draft created", "id", d.ID, "kind", d.Kind)
	return d, nil
}

func (s *service) FindDraft(ctx context.Context, id uuid.UUID) (*Draft, error) {
	return s.drafts.get(id)
}

func (s *service) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	d, err := s.drafts.take(id)
	if err != nil {
		return err
	}

	if d.Source != nil {
		s.discard(ctx, d.Source.Key)
	}

	s.logger.Info("draft deleted", "id", id)
	return nil
}

func (s *service) AttachFile(ctx context.Context, id uuid.UUID, filename string, data []byte) (*Draft, error) {
	if _, err := s.drafts.get(id); err != nil {
		return nil, err
	}

	stored, err := s.files.UploadSource(ctx, filename, data)
	if err != nil {
		return nil, fileError("file", err)
	}

	var previous string
	d, err := s.drafts.update(id, func(d *Draft) error {
		if d.Source != nil {
			previous = d.Source.Key
		}
		d.AttachFile(SourceFile{
			Key:         stored.Key,
			Filename:    stored.Filename,
			ContentType: stored.ContentType,
			Size:        stored.Size,
			PageCount:   stored.PageCount,
		}, s.now())
		return nil
	})
	if err != nil {
		s.discard(ctx, stored.Key)
		return nil, err
	}

	if previous != "" {
		s.discard(ctx, previous)
	}

	s.logger.Info("draft file attached", "id", id, "key", stored.Key, "pages", stored.PageCount)
	return d, nil
}

func (s *service) SelectTemplate(ctx context.Context, id uuid.UUID, cmd SelectTemplateCommand) (*Draft, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	return s.drafts.update(id, func(d *Draft) error {
		return d.SelectTemplate(cmd.Kind, s.now())
	})
}

func (s *service) SetCustomRoster(ctx context.Context, id uuid.UUID, cmd SetRosterCommand) (*Draft, error) {
	return s.drafts.update(id, func(d *Draft) error {
		return d.SetCustomRoster(cmd.Signers, s.now())
	})
}

func (s *service) PlaceAnchor(ctx context.Context, id uuid.UUID, slot int, anchor Anchor) (*Draft, error) {
	return s.drafts.update(id, func(d *Draft) error {
		return d.PlaceAnchor(slot, anchor, s.now())
	})
}

func (s *service) RenderPage(ctx context.Context, id uuid.UUID, page int) ([]byte, error) {
	d, err := s.drafts.get(id)
	if err != nil {
		return nil, err
	}
	if d.Source == nil {
		return nil, ErrNoFile
	}
	if page < 1 || page > d.Source.PageCount {
		return nil, &ValidationError{Field: "page", Reason: fmt.Sprintf("document has %d pages", d.Source.PageCount)}
	}

	img, err := s.renderer.RenderPage(ctx, d.Source.Key, page)
	if err != nil {
		return nil, fmt.Errorf("%w: render page %d: %v", ErrCollaboratorUnavailable, page, err)
	}
	return img, nil
}

func (s *service) Submit(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	d, err := s.drafts.take(id)
	if err != nil {
		return nil, err
	}

	w, err := d.Freeze(s.now())
	if err != nil {
		s.drafts.restore(d)
		return nil, err
	}

	if err := s.store.Insert(ctx, w); err != nil {
		s.drafts.restore(d)
		return nil, fmt.Errorf("insert workflow: %w", err)
	}

	s.logger.Info(
		"workflow submitted",
		"id", w.ID,
		"draft", id,
		"kind", w.Kind,
		"signers", len(w.Roster),
	)

	if ev, ok := Assignment(w); ok {
		s.dispatch(ctx, []Event{ev})
	}
	return w, nil
}

func (s *service) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Workflow], error) {
	page.Normalize(s.pagination)
	return s.store.List(ctx, page, filters)
}

func (s *service) Find(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	return s.store.Find(ctx, id)
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

func (s *service) Act(ctx context.Context, id uuid.UUID, cmd ActCommand) (*Workflow, error) {
	current, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Actable(current, cmd.Slot); err != nil {
		return nil, err
	}

	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	if cmd.Artifact != nil && cmd.Decision != DecisionReject {
		if err := s.checkArtifact(ctx, *cmd.Artifact); err != nil {
			return nil, err
		}
	}

	var events []Event
	w, err := s.store.Transition(ctx, id, func(w *Workflow) error {
		var err error
		events, err = Act(w, cmd, s.policy, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(
		"workflow acted",
		"id", w.ID,
		"slot", cmd.Slot,
		"decision", cmd.Decision,
		"status", w.Status,
	)

	s.dispatch(ctx, events)
	return w, nil
}

// dispatch delivers events concurrently. Failures are logged and never
// reach the caller; the transition has already committed.
func (s *service) dispatch(ctx context.Context, events []Event) {
	if s.notifier == nil || len(events) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.limit)

	for _, ev := range events {
		g.Go(func() error {
			if err := s.notifier.Notify(ctx, ev.Recipient, ev); err != nil {
				s.logger.Warn(
					"notification dispatch failed",
					"workflow", ev.WorkflowID,
					"kind", ev.Kind,
					"recipient", ev.Recipient,
					"error", err,
				)
			}
			return nil
		})
	}

	g.Wait()
}

// checkArtifact accepts only captured signature images.
func (s *service) checkArtifact(ctx context.Context, key string) error {
	if !files.IsArtifactKey(key) {
		return &ValidationError{Field: "artifact", Reason: key + " is not a signature artifact"}
	}

	ok, err := s.files.Exists(ctx, key)
	if err != nil {
		return fileError("artifact", err)
	}
	if !ok {
		return &ValidationError{Field: "artifact", Reason: "no stored artifact at " + key}
	}
	return nil
}

func (s *service) discard(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("file cleanup failed", "key", key, "error", err)
	}
}

// fileError translates a files failure into the workflow taxonomy.
func fileError(field string, err error) error {
	switch {
	case errors.Is(err, files.ErrNotPDF),
		errors.Is(err, files.ErrNotImage),
		errors.Is(err, files.ErrInvalidFile),
		errors.Is(err, files.ErrFileTooLarge):
		return &ValidationError{Field: field, Reason: err.Error()}
	case errors.Is(err, files.ErrNotFound):
		return &ValidationError{Field: field, Reason: "not found"}
	}
	return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
}
