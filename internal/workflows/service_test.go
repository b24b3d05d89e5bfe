package workflows

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/countersign/internal/files"
	"github.com/JaimeStill/countersign/pkg/pagination"
)

type mockFiles struct {
	mu        sync.Mutex
	pages     int
	uploadErr error
	existsErr error
	stored    map[string]bool
	deleted   []string
}

func newMockFiles(pages int) *mockFiles {
	return &mockFiles{pages: pages, stored: make(map[string]bool)}
}

func (m *mockFiles) UploadSource(ctx context.Context, filename string, data []byte) (*files.Stored, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "sources/" + uuid.NewString() + "/" + filename
	m.stored[key] = true
	return &files.Stored{
		Key:         key,
		Filename:    filename,
		ContentType: "application/pdf",
		Size:        int64(len(data)),
		PageCount:   m.pages,
	}, nil
}

func (m *mockFiles) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored[key], nil
}

func (m *mockFiles) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stored, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockFiles) add(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[key] = true
}

type mockRenderer struct {
	err error
}

func (m *mockRenderer) RenderPage(ctx context.Context, key string, page int) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []byte("png"), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, userRef string, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) take() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.events
	n.events = nil
	return out
}

type failingStore struct {
	Store
}

func (failingStore) Insert(ctx context.Context, w *Workflow) error {
	return errors.New("connection reset")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	sys      System
	store    Store
	files    *mockFiles
	renderer *mockRenderer
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    NewMemoryStore(),
		files:    newMockFiles(2),
		renderer: &mockRenderer{},
		notifier: &recordingNotifier{},
	}
	f.sys = New(f.store, f.files, f.renderer, f.notifier, discardLogger(), Config{
		DraftTTL:      time.Hour,
		Policy:        NewArtifactPolicy([]string{"project", "contract", "purchase"}),
		Pagination:    pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
		DispatchLimit: 2,
	})
	return f
}

// readyDraft builds a submitted-ready draft of kind with every anchor placed.
func (f *fixture) readyDraft(t *testing.T, kind Kind) *Draft {
	t.Helper()
	ctx := context.Background()

	d, err := f.sys.CreateDraft(ctx, CreateDraftCommand{
		Title:   "Tower B foundations",
		Kind:    kind,
		Creator: Party{Name: "creator", Role: "Site Engineer"},
	})
	require.NoError(t, err)

	d, err = f.sys.AttachFile(ctx, d.ID, "foundations.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)

	for i := range d.Roster {
		d, err = f.sys.PlaceAnchor(ctx, d.ID, i, Anchor{X: 10, Y: 85, Page: 2})
		require.NoError(t, err)
	}
	return d
}

func TestServiceProjectWorkflowEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.readyDraft(t, KindProject)
	w, err := f.sys.Submit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, w.Status)

	events := f.notifier.take()
	require.Len(t, events, 1)
	assert.Equal(t, EventAssigned, events[0].Kind)
	assert.Equal(t, "Alaa Otaili", events[0].Recipient)

	_, err = f.sys.FindDraft(ctx, d.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound, "submitted drafts leave the registry")

	for slot := range w.Roster {
		key := "artifacts/sig-" + uuid.NewString() + ".png"
		f.files.add(key)

		w, err = f.sys.Act(ctx, w.ID, ActCommand{Slot: slot, Decision: DecisionSign, Artifact: &key})
		require.NoError(t, err)
	}

	assert.Equal(t, StatusCompleted, w.Status)
	assert.NotNil(t, w.CompletedAt)

	events = f.notifier.take()
	var completed int
	for _, ev := range events {
		if ev.Kind == EventCompleted {
			completed++
			assert.Equal(t, "creator", ev.Recipient)
		}
	}
	assert.Equal(t, 1, completed)
	assert.Len(t, events, 2*len(w.Roster))

	stats, err := f.sys.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
}

func TestServiceSubmitPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d, err := f.sys.CreateDraft(ctx, CreateDraftCommand{
		Title:   "Loose draft",
		Kind:    KindContract,
		Creator: Party{Name: "creator", Role: "Engineer"},
	})
	require.NoError(t, err)

	_, err = f.sys.Submit(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = f.sys.AttachFile(ctx, d.ID, "c.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	_, err = f.sys.Submit(ctx, d.ID)
	assert.ErrorIs(t, err, ErrIncompletePlacement)

	got, err := f.sys.FindDraft(ctx, d.ID)
	require.NoError(t, err, "a rejected submission keeps the draft")
	assert.NotNil(t, got.Source)
	assert.Empty(t, f.notifier.take())
}

func TestServiceSubmitRestoresDraftOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sys = New(failingStore{f.store}, f.files, f.renderer, f.notifier, discardLogger(), Config{DraftTTL: time.Hour})

	d := f.readyDraft(t, KindOther)
	_, err := f.sys.SetCustomRoster(ctx, d.ID, SetRosterCommand{Signers: []RosterEntry{{Name: "a", Role: "b"}}})
	require.NoError(t, err)
	_, err = f.sys.PlaceAnchor(ctx, d.ID, 0, Anchor{X: 1, Y: 1, Page: 1})
	require.NoError(t, err)

	_, err = f.sys.Submit(ctx, d.ID)
	require.Error(t, err)

	_, err = f.sys.FindDraft(ctx, d.ID)
	assert.NoError(t, err)
}

func TestServiceAttachFileReplacesSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.readyDraft(t, KindPurchase)
	first := d.Source.Key

	f.files.pages = 1
	d, err := f.sys.AttachFile(ctx, d.ID, "smaller.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)

	assert.NotEqual(t, first, d.Source.Key)
	assert.Contains(t, f.files.deleted, first)
	for _, s := range d.Roster {
		assert.Nil(t, s.Anchor, "anchors on page 2 are cleared")
	}

	f.files.uploadErr = files.ErrNotPDF
	_, err = f.sys.AttachFile(ctx, d.ID, "notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestServiceDeleteDraftDiscardsSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.readyDraft(t, KindPurchase)
	first := d.Source.Key
	d, err := f.sys.AttachFile(ctx, d.ID, "revised.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)

	require.NoError(t, f.sys.DeleteDraft(ctx, d.ID))
	assert.Equal(t, []string{first, d.Source.Key}, f.files.deleted, "each source is discarded once")
	assert.Empty(t, f.files.stored)
	assert.ErrorIs(t, f.sys.DeleteDraft(ctx, d.ID), ErrDraftNotFound)
}

func TestServiceRenderPage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d, err := f.sys.CreateDraft(ctx, CreateDraftCommand{
		Title:   "Render",
		Kind:    KindOther,
		Creator: Party{Name: "creator", Role: "Engineer"},
	})
	require.NoError(t, err)

	_, err = f.sys.RenderPage(ctx, d.ID, 1)
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = f.sys.AttachFile(ctx, d.ID, "r.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)

	img, err := f.sys.RenderPage(ctx, d.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), img)

	_, err = f.sys.RenderPage(ctx, d.ID, 3)
	assert.ErrorIs(t, err, ErrValidation)

	f.renderer.err = errors.New("magick not installed")
	_, err = f.sys.RenderPage(ctx, d.ID, 1)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
}

func TestServiceActArtifactChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w, err := f.sys.Submit(ctx, f.readyDraft(t, KindContract).ID)
	require.NoError(t, err)

	_, err = f.sys.Act(ctx, w.ID, ActCommand{Slot: 0, Decision: DecisionSign})
	assert.ErrorIs(t, err, ErrValidation, "contracts require an artifact")

	missing := "artifacts/missing.png"
	_, err = f.sys.Act(ctx, w.ID, ActCommand{Slot: 0, Decision: DecisionSign, Artifact: &missing})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.sys.Act(ctx, w.ID, ActCommand{Slot: 0, Decision: "countersign"})
	assert.ErrorIs(t, err, ErrValidation)

	f.files.existsErr = files.ErrUnavailable
	present := "artifacts/present.png"
	_, err = f.sys.Act(ctx, w.ID, ActCommand{Slot: 0, Decision: DecisionSign, Artifact: &present})
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)

	got, err := f.sys.Find(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentIndex)
	assert.Equal(t, StatusPending, got.Status)
}

func TestServiceActChecksSequenceBeforeArtifact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	missing := "artifacts/never-captured.png"

	closed, err := f.sys.Submit(ctx, f.readyDraft(t, KindPurchase).ID)
	require.NoError(t, err)
	_, err = f.sys.Act(ctx, closed.ID, ActCommand{Slot: 0, Decision: DecisionReject})
	require.NoError(t, err)

	fresh, err := f.sys.Submit(ctx, f.readyDraft(t, KindPurchase).ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		id        uuid.UUID
		slot      int
		existsErr error
		wantErr   error
	}{
		{"closed with missing artifact", closed.ID, 1, nil, ErrWorkflowClosed},
		{"closed during storage outage", closed.ID, 1, files.ErrUnavailable, ErrWorkflowClosed},
		{"out of sequence with missing artifact", fresh.ID, 2, nil, ErrOutOfSequence},
		{"out of sequence during storage outage", fresh.ID, 1, files.ErrUnavailable, ErrOutOfSequence},
		{"unknown workflow", uuid.New(), 0, nil, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.files.existsErr = tt.existsErr
			_, err := f.sys.Act(ctx, tt.id, ActCommand{Slot: tt.slot, Decision: DecisionSign, Artifact: &missing})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestServiceActRejectsNonArtifactKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w, err := f.sys.Submit(ctx, f.readyDraft(t, KindContract).ID)
	require.NoError(t, err)

	for _, key := range []string{w.Source.Key, "sources/other/doc.pdf", "artifacts/nested/sig.png"} {
		f.files.add(key)
		_, err := f.sys.Act(ctx, w.ID, ActCommand{Slot: 0, Decision: DecisionSign, Artifact: &key})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, key)
		assert.Equal(t, "artifact", ve.Field)
	}

	got, err := f.sys.Find(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentIndex)
	assert.Nil(t, got.Roster[0].Artifact)
}

func TestServiceRejectNotifiesCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w, err := f.sys.Submit(ctx, f.readyDraft(t, KindPurchase).ID)
	require.NoError(t, err)
	f.notifier.take()

	comment := "quantities do not match the PO"
	w, err = f.sys.Act(ctx, w.ID, ActCommand{Slot: 0, Decision: DecisionReject, Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, w.Status)

	events := f.notifier.take()
	require.Len(t, events, 1)
	assert.Equal(t, EventRejected, events[0].Kind)
	assert.Equal(t, "creator", events[0].Recipient)

	_, err = f.sys.Act(ctx, w.ID, ActCommand{Slot: 1, Decision: DecisionReject})
	assert.ErrorIs(t, err, ErrWorkflowClosed)
}

func TestServiceNotifierFailureDoesNotFailAct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")

	d, err := f.sys.CreateDraft(ctx, CreateDraftCommand{
		Title:   "Memo",
		Kind:    KindOther,
		Creator: Party{Name: "creator", Role: "Engineer"},
	})
	require.NoError(t, err)
	_, err = f.sys.SetCustomRoster(ctx, d.ID, SetRosterCommand{Signers: []RosterEntry{{Name: "a", Role: "b"}}})
	require.NoError(t, err)
	_, err = f.sys.AttachFile(ctx, d.ID, "memo.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	_, err = f.sys.PlaceAnchor(ctx, d.ID, 0, Anchor{X: 1, Y: 1, Page: 1})
	require.NoError(t, err)

	w, err := f.sys.Submit(ctx, d.ID)
	require.NoError(t, err)

	w, err = f.sys.Act(ctx, w.ID, ActCommand{Slot: 0, Decision: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, w.Status)
}
