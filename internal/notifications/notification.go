// Package notifications records workflow transition events in per-user
// inboxes and optionally fans them out over Redis.
package notifications

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/internal/workflows"
)

// Notification is one inbox entry.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	UserRef    string    `json:"user_ref"`
	Kind       string    `json:"kind"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromEvent builds the inbox entry for a workflow event.
func FromEvent(userRef string, ev workflows.Event, now time.Time) Notification {
	return Notification{
		ID:         uuid.New(),
		UserRef:    userRef,
		Kind:       string(ev.Kind),
		WorkflowID: ev.WorkflowID,
		Title:      ev.Title,
		Message:    message(ev),
		CreatedAt:  now,
	}
}

func message(ev workflows.Event) string {
	switch ev.Kind {
	case workflows.EventAssigned:
		return fmt.Sprintf("%q is waiting for your signature", ev.Title)
	case workflows.EventSigned:
		return fmt.Sprintf("%s signed %q", ev.Actor, ev.Title)
	case workflows.EventRejected:
		return fmt.Sprintf("%s rejected %q", ev.Actor, ev.Title)
	case workflows.EventCompleted:
		return fmt.Sprintf("%q has been signed by everyone", ev.Title)
	}
	return ev.Title
}
