package workflows

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newTestWorkflow(kind Kind, names ...string) *Workflow {
	roster := make([]Signer, len(names))
	for i, n := range names {
		roster[i] = Signer{
			Order:  i,
			Name:   n,
			Role:   "Role " + n,
			Status: SignerPending,
			Anchor: &Anchor{X: 10, Y: 80, Page: 1},
		}
	}
	w := &Workflow{
		ID:        uuid.New(),
		Title:     "Site survey",
		Kind:      kind,
		Creator:   Party{Name: "creator", Role: "Engineer"},
		Source:    SourceFile{Key: "sources/x/survey.pdf", PageCount: 2},
		Roster:    roster,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	w.Status = Derive(w.Roster, w.CurrentIndex)
	return w
}

func TestDerive(t *testing.T) {
	pending := func(n int) []Signer {
		r := make([]Signer, n)
		for i := range r {
			r[i] = Signer{Order: i, Status: SignerPending}
		}
		return r
	}
	rejectedAt := func(n, slot int) []Signer {
		r := pending(n)
		r[slot].Status = SignerRejected
		return r
	}

	tests := []struct {
		name   string
		roster []Signer
		index  int
		want   Status
	}{
		{"fresh", pending(3), 0, StatusPending},
		{"midway", pending(3), 1, StatusInProgress},
		{"last slot pending", pending(3), 2, StatusInProgress},
		{"all signed", pending(3), 3, StatusCompleted},
		{"rejected first", rejectedAt(3, 0), 0, StatusRejected},
		{"rejected beats completion index", rejectedAt(3, 2), 3, StatusRejected},
		{"empty roster", nil, 0, StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.roster, tt.index))
			// Pure: a second call over the same input agrees.
			assert.Equal(t, tt.want, Derive(tt.roster, tt.index))
		})
	}
}

func TestActSignsThroughToCompletion(t *testing.T) {
	w := newTestWorkflow(KindOther, "a", "b", "c")

	events, err := Act(w, ActCommand{Slot: 0, Decision: DecisionSign}, nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, w.Status)
	assert.Equal(t, 1, w.CurrentIndex)
	assert.Equal(t, SignerSigned, w.Roster[0].Status)
	require.Len(t, events, 2)
	assert.Equal(t, EventSigned, events[0].Kind)
	assert.Equal(t, "creator", events[0].Recipient)
	assert.Equal(t, EventAssigned, events[1].Kind)
	assert.Equal(t, "b", events[1].Recipient)
	assert.Equal(t, 1, events[1].Slot)

	_, err = Act(w, ActCommand{Slot: 1, Decision: DecisionApprove}, nil, testNow)
	require.NoError(t, err)

	later := testNow.Add(time.Hour)
	events, err = Act(w, ActCommand{Slot: 2, Decision: DecisionSign, Comment: strPtr("ok")}, nil, later)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, w.Status)
	assert.Equal(t, 3, w.CurrentIndex)
	require.NotNil(t, w.CompletedAt)
	assert.Equal(t, later, *w.CompletedAt)
	assert.Equal(t, "ok", *w.Roster[2].Comment)
	require.Len(t, events, 2)
	assert.Equal(t, EventCompleted, events[1].Kind)
	assert.Equal(t, "creator", events[1].Recipient)

	for _, s := range w.Roster {
		assert.Equal(t, SignerSigned, s.Status)
		assert.NotNil(t, s.ActedAt)
	}
}

func TestActRejectHalts(t *testing.T) {
	w := newTestWorkflow(KindOther, "a", "b", "c")

	_, err := Act(w, ActCommand{Slot: 0, Decision: DecisionSign}, nil, testNow)
	require.NoError(t, err)

	events, err := Act(w, ActCommand{Slot: 1, Decision: DecisionReject, Comment: strPtr("wrong totals")}, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, w.Status)
	assert.Equal(t, 1, w.CurrentIndex)
	assert.Equal(t, SignerRejected, w.Roster[1].Status)
	assert.Equal(t, SignerPending, w.Roster[2].Status)
	assert.NotNil(t, w.CompletedAt)
	require.Len(t, events, 1)
	assert.Equal(t, EventRejected, events[0].Kind)
	assert.Equal(t, "creator", events[0].Recipient)

	_, err = Act(w, ActCommand{Slot: 2, Decision: DecisionSign}, nil, testNow)
	assert.ErrorIs(t, err, ErrWorkflowClosed)
}

func TestActFailuresLeaveWorkflowUntouched(t *testing.T) {
	policy := NewArtifactPolicy([]string{"project"})

	completed := newTestWorkflow(KindOther, "a")
	_, err := Act(completed, ActCommand{Slot: 0, Decision: DecisionSign}, nil, testNow)
	require.NoError(t, err)

	tests := []struct {
		name    string
		w       *Workflow
		cmd     ActCommand
		wantErr error
	}{
		{
			name:    "out of sequence",
			w:       newTestWorkflow(KindOther, "a", "b"),
			cmd:     ActCommand{Slot: 1, Decision: DecisionSign},
			wantErr: ErrOutOfSequence,
		},
		{
			name:    "closed checked before sequence",
			w:       completed,
			cmd:     ActCommand{Slot: 5, Decision: DecisionSign},
			wantErr: ErrWorkflowClosed,
		},
		{
			name:    "unknown decision",
			w:       newTestWorkflow(KindOther, "a"),
			cmd:     ActCommand{Slot: 0, Decision: "shrug"},
			wantErr: ErrValidation,
		},
		{
			name:    "artifact required",
			w:       newTestWorkflow(KindProject, "a"),
			cmd:     ActCommand{Slot: 0, Decision: DecisionSign},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.w.Clone()
			events, err := Act(tt.w, tt.cmd, policy, testNow.Add(time.Minute))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, events)
			assert.Equal(t, before, tt.w)
		})
	}
}

func TestActArtifactPolicy(t *testing.T) {
	policy := NewArtifactPolicy([]string{"project"})

	t.Run("reject needs no artifact", func(t *testing.T) {
		w := newTestWorkflow(KindProject, "a", "b")
		_, err := Act(w, ActCommand{Slot: 0, Decision: DecisionReject}, policy, testNow)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, w.Status)
	})

	t.Run("artifact recorded on sign", func(t *testing.T) {
		w := newTestWorkflow(KindProject, "a", "b")
		_, err := Act(w, ActCommand{Slot: 0, Decision: DecisionSign, Artifact: strPtr("artifacts/sig.png")}, policy, testNow)
		require.NoError(t, err)
		require.NotNil(t, w.Roster[0].Artifact)
		assert.Equal(t, "artifacts/sig.png", *w.Roster[0].Artifact)
	})

	t.Run("optional for other kinds", func(t *testing.T) {
		w := newTestWorkflow(KindOther, "a")
		_, err := Act(w, ActCommand{Slot: 0, Decision: DecisionApprove}, policy, testNow)
		require.NoError(t, err)
		assert.Nil(t, w.Roster[0].Artifact)
	})
}

func TestActIndexNeverDecreases(t *testing.T) {
	w := newTestWorkflow(KindOther, "a", "b", "c", "d")
	decisions := []ActCommand{
		{Slot: 0, Decision: DecisionSign},
		{Slot: 0, Decision: DecisionSign},
		{Slot: 2, Decision: DecisionSign},
		{Slot: 1, Decision: DecisionApprove},
		{Slot: 2, Decision: DecisionReject},
		{Slot: 3, Decision: DecisionSign},
	}

	last := w.CurrentIndex
	for _, cmd := range decisions {
		_, err := Act(w, cmd, nil, testNow)
		if err != nil && !errors.Is(err, ErrOutOfSequence) && !errors.Is(err, ErrWorkflowClosed) {
			t.Fatalf("unexpected error: %v", err)
		}
		assert.GreaterOrEqual(t, w.CurrentIndex, last)
		assert.Equal(t, Derive(w.Roster, w.CurrentIndex), w.Status)
		last = w.CurrentIndex
	}

	assert.Equal(t, StatusRejected, w.Status)
	assert.Equal(t, 2, w.CurrentIndex)
}

func TestActActorDefaultsToAssignee(t *testing.T) {
	w := newTestWorkflow(KindOther, "a", "b")
	w.Roster[0].Assignee = "user-a"
	w.Roster[1].Assignee = "user-b"

	events, err := Act(w, ActCommand{Slot: 0, Decision: DecisionSign}, nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, "user-a", events[0].Actor)
	assert.Equal(t, "user-b", events[1].Recipient)
}

func TestAssignment(t *testing.T) {
	w := newTestWorkflow(KindOther, "a", "b")
	ev, ok := Assignment(w)
	require.True(t, ok)
	assert.Equal(t, EventAssigned, ev.Kind)
	assert.Equal(t, "a", ev.Recipient)
	assert.Equal(t, 0, ev.Slot)

	w.Status = StatusRejected
	_, ok = Assignment(w)
	assert.False(t, ok)
}

func TestAnchorValidate(t *testing.T) {
	tests := []struct {
		name      string
		anchor    Anchor
		pages     int
		wantField string
	}{
		{"valid", Anchor{X: 0, Y: 100, Page: 2}, 2, ""},
		{"x above range", Anchor{X: 100.5, Y: 10, Page: 1}, 2, "x"},
		{"negative y", Anchor{X: 1, Y: -1, Page: 1}, 2, "y"},
		{"page zero", Anchor{X: 1, Y: 1, Page: 0}, 2, "page"},
		{"page past end", Anchor{X: 1, Y: 1, Page: 3}, 2, "page"},
		{"unknown page count", Anchor{X: 1, Y: 1, Page: 40}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.anchor.Validate(tt.pages)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ValidationError{Field: "x", Reason: "bad"}, 400},
		{"not found", ErrNotFound, 404},
		{"draft not found", ErrDraftNotFound, 404},
		{"out of sequence", ErrOutOfSequence, 409},
		{"closed", ErrWorkflowClosed, 409},
		{"incomplete", ErrIncompletePlacement, 422},
		{"no file", ErrNoFile, 422},
		{"empty roster", ErrEmptyRoster, 422},
		{"unavailable", ErrCollaboratorUnavailable, 503},
		{"unknown", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapHTTPStatus(tt.err))
		})
	}
}
