package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActCommand is a decision by the slot at Slot.
// Actor defaults to the slot's user reference.
type ActCommand struct {
	Slot     int      `json:"-"`
	Decision Decision `json:"decision" validate:"required,oneof=sign approve reject"`
	Artifact *string  `json:"artifact,omitempty" validate:"omitempty,min=1,max=512"`
	Comment  *string  `json:"comment,omitempty" validate:"omitempty,max=2000"`
	Actor    string   `json:"actor,omitempty" validate:"max=200"`
}

// EventKind classifies a transition for notification.
type EventKind string

const (
	EventAssigned  EventKind = "assigned"
	EventSigned    EventKind = "signed"
	EventRejected  EventKind = "rejected"
	EventCompleted EventKind = "completed"
)

// Event is emitted after a committed transition. Recipient is the userRef
// the event is addressed to.
type Event struct {
	Kind       EventKind `json:"kind"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Title      string    `json:"title"`
	Slot       int       `json:"slot"`
	Actor      string    `json:"actor,omitempty"`
	Recipient  string    `json:"recipient"`
}

// Act applies cmd to w. On error w is left untouched. On success the slot,
// pointer, status, and timestamps are updated together and the events to
// dispatch are returned.
func Act(w *Workflow, cmd ActCommand, policy ArtifactPolicy, now time.Time) ([]Event, error) {
	if err := Actable(w, cmd.Slot); err != nil {
		return nil, err
	}
	if !cmd.Decision.Valid() {
		return nil, &ValidationError{Field: "decision", Reason: fmt.Sprintf("unknown decision %q", cmd.Decision)}
	}

	hasArtifact := cmd.Artifact != nil && *cmd.Artifact != ""
	if cmd.Decision != DecisionReject && !hasArtifact && policy.Requires(w.Kind) {
		return nil, &ValidationError{Field: "artifact", Reason: fmt.Sprintf("required for %s workflows", w.Kind)}
	}

	slot := &w.Roster[cmd.Slot]
	actor := cmd.Actor
	if actor == "" {
		actor = slot.UserRef()
	}

	event := func(kind EventKind, recipient string) Event {
		return Event{
			Kind:       kind,
			WorkflowID: w.ID,
			Title:      w.Title,
			Slot:       cmd.Slot,
			Actor:      actor,
			Recipient:  recipient,
		}
	}

	var events []Event

	if cmd.Decision == DecisionReject {
		slot.Status = SignerRejected
		events = append(events, event(EventRejected, w.Creator.Name))
	} else {
		slot.Status = SignerSigned
		if hasArtifact {
			slot.Artifact = clonePtr(cmd.Artifact)
		}
		w.CurrentIndex++
		events = append(events, event(EventSigned, w.Creator.Name))

		if next, ok := nextSlot(w); ok {
			assigned := event(EventAssigned, next.UserRef())
			assigned.Slot = next.Order
			events = append(events, assigned)
		} else {
			events = append(events, event(EventCompleted, w.Creator.Name))
		}
	}

	slot.Comment = clonePtr(cmd.Comment)
	slot.ActedAt = &now

	w.Status = Derive(w.Roster, w.CurrentIndex)
	w.UpdatedAt = now
	if w.Status.Terminal() {
		w.CompletedAt = &now
	}

	return events, nil
}

// Actable reports whether slot may act on w now. A closed workflow is
// reported before a sequence violation.
func Actable(w *Workflow, slot int) error {
	if w.Status.Terminal() {
		return fmt.Errorf("%w: status is %s", ErrWorkflowClosed, w.Status)
	}
	if slot != w.CurrentIndex {
		return fmt.Errorf("%w: slot %d acted, slot %d is current", ErrOutOfSequence, slot, w.CurrentIndex)
	}
	return nil
}

// Assignment returns the event announcing the current slot, used when a
// workflow is first submitted.
func Assignment(w *Workflow) (Event, bool) {
	current, ok := w.Current()
	if !ok {
		return Event{}, false
	}
	return Event{
		Kind:       EventAssigned,
		WorkflowID: w.ID,
		Title:      w.Title,
		Slot:       current.Order,
		Actor:      w.Creator.Name,
		Recipient:  current.UserRef(),
	}, true
}

func nextSlot(w *Workflow) (Signer, bool) {
	if w.CurrentIndex >= len(w.Roster) {
		return Signer{}, false
	}
	return w.Roster[w.CurrentIndex], true
}
