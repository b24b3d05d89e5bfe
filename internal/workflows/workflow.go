// Package workflows implements the sequential approval and signature engine.
// A draft is assembled with a roster and one anchor per signer, then frozen
// into a Workflow whose slots act strictly in order until the workflow
// completes or is rejected.
package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects the roster template a workflow starts from.
type Kind string

const (
	KindProject  Kind = "project"
	KindContract Kind = "contract"
	KindPurchase Kind = "purchase"
	KindOther    Kind = "other"
)

// Valid reports whether k is a known workflow kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProject, KindContract, KindPurchase, KindOther:
		return true
	}
	return false
}

// Status is the aggregate state of a workflow.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether no further action can be applied.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// SignerStatus is the outcome recorded on a single slot.
type SignerStatus string

const (
	SignerPending  SignerStatus = "pending"
	SignerSigned   SignerStatus = "signed"
	SignerRejected SignerStatus = "rejected"
)

// Decision is the action a signer takes on their slot.
type Decision string

const (
	DecisionSign    Decision = "sign"
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionSign, DecisionApprove, DecisionReject:
		return true
	}
	return false
}

// Anchor is a page-relative placement in percent of the page dimensions.
type Anchor struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Page int     `json:"page"`
}

// Validate checks coordinate bounds and the page number. A pageCount of zero
// means the page count is unknown and only the lower bound is enforced.
func (a Anchor) Validate(pageCount int) error {
	if a.X < 0 || a.X > 100 {
		return &ValidationError{Field: "x", Reason: fmt.Sprintf("%g is outside [0,100]", a.X)}
	}
	if a.Y < 0 || a.Y > 100 {
		return &ValidationError{Field: "y", Reason: fmt.Sprintf("%g is outside [0,100]", a.Y)}
	}
	if a.Page < 1 {
		return &ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if pageCount > 0 && a.Page > pageCount {
		return &ValidationError{Field: "page", Reason: fmt.Sprintf("document has %d pages", pageCount)}
	}
	return nil
}

// Party identifies a person by display name and role.
type Party struct {
	Name string `json:"name" validate:"required,max=200"`
	Role string `json:"role" validate:"required,max=200"`
}

// Signer is one slot of a roster.
type Signer struct {
	Order    int          `json:"order"`
	Name     string       `json:"name"`
	Role     string       `json:"role"`
	Assignee string       `json:"assignee,omitempty"`
	Status   SignerStatus `json:"status"`
	Anchor   *Anchor      `json:"anchor,omitempty"`
	Artifact *string      `json:"artifact,omitempty"`
	Comment  *string      `json:"comment,omitempty"`
	ActedAt  *time.Time   `json:"acted_at,omitempty"`
}

// UserRef is the notification recipient for this slot.
func (s Signer) UserRef() string {
	if s.Assignee != "" {
		return s.Assignee
	}
	return s.Name
}

// SourceFile references the stored document a workflow is bound to.
type SourceFile struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	PageCount   int    `json:"page_count"`
}

// Workflow is a submitted document moving through its roster.
// Status is cached and always equals Derive(Roster, CurrentIndex).
type Workflow struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Kind         Kind       `json:"kind"`
	Creator      Party      `json:"creator"`
	Source       SourceFile `json:"source"`
	Roster       []Signer   `json:"roster"`
	CurrentIndex int        `json:"current_index"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Current returns the slot expected to act next, or false when the workflow
// is terminal.
func (w *Workflow) Current() (Signer, bool) {
	if w.Status.Terminal() || w.CurrentIndex >= len(w.Roster) {
		return Signer{}, false
	}
	return w.Roster[w.CurrentIndex], true
}

// Clone returns a deep copy.
func (w *Workflow) Clone() *Workflow {
	c := *w
	c.Roster = cloneRoster(w.Roster)
	c.CompletedAt = clonePtr(w.CompletedAt)
	return &c
}

// Derive computes the aggregate status from slot state and the pointer.
func Derive(roster []Signer, currentIndex int) Status {
	for _, s := range roster {
		if s.Status == SignerRejected {
			return StatusRejected
		}
	}
	switch {
	case currentIndex >= len(roster):
		return StatusCompleted
	case currentIndex == 0:
		return StatusPending
	default:
		return StatusInProgress
	}
}

// Stats counts workflows per status.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Rejected   int `json:"rejected"`
}

func (s *Stats) add(status Status, n int) {
	s.Total += n
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusInProgress:
		s.InProgress += n
	case StatusCompleted:
		s.Completed += n
	case StatusRejected:
		s.Rejected += n
	}
}

func cloneRoster(roster []Signer) []Signer {
	if roster == nil {
		return nil
	}
	out := make([]Signer, len(roster))
	for i, s := range roster {
		out[i] = s
		out[i].Anchor = clonePtr(s.Anchor)
		out[i].Artifact = clonePtr(s.Artifact)
		out[i].Comment = clonePtr(s.Comment)
		out[i].ActedAt = clonePtr(s.ActedAt)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
