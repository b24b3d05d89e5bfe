package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Draft is a workflow under construction. It stays editable until Submit
// freezes it into a Workflow.
//
// Cursor is the slot the placement UI should prompt for next. It is
// unrelated to a workflow's CurrentIndex.
type Draft struct {
	ID        uuid.UUID   `json:"id"`
	Title     string      `json:"title"`
	Kind      Kind        `json:"kind"`
	Creator   Party       `json:"creator"`
	Source    *SourceFile `json:"source,omitempty"`
	Roster    []Signer    `json:"roster"`
	Cursor    int         `json:"cursor"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CreateDraftCommand starts a draft from a roster template.
type CreateDraftCommand struct {
	Title   string `json:"title" validate:"required,max=300"`
	Kind    Kind   `json:"kind" validate:"required,oneof=project contract purchase other"`
	Creator Party  `json:"creator"`
}

// RosterEntry is one signer of a custom roster, in order.
type RosterEntry struct {
	Name     string `json:"name" validate:"required,max=200"`
	Role     string `json:"role" validate:"required,max=200"`
	Assignee string `json:"assignee,omitempty" validate:"max=200"`
}

// SetRosterCommand replaces a custom roster.
type SetRosterCommand struct {
	Signers []RosterEntry `json:"signers" validate:"dive"`
}

// SelectTemplateCommand switches the draft's kind.
type SelectTemplateCommand struct {
	Kind Kind `json:"kind" validate:"required,oneof=project contract purchase other"`
}

// NewDraft builds a draft seeded with the template roster for cmd.Kind.
func NewDraft(cmd CreateDraftCommand, now time.Time) (*Draft, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}

	d := &Draft{
		ID:        uuid.New(),
		Title:     cmd.Title,
		Creator:   cmd.Creator,
		CreatedAt: now,
	}
	if err := d.SelectTemplate(cmd.Kind, now); err != nil {
		return nil, err
	}
	return d, nil
}

// SelectTemplate replaces the roster with the fixed template for kind,
// discarding any anchors and custom entries.
func (d *Draft) SelectTemplate(kind Kind, now time.Time) error {
	t, ok := TemplateFor(kind)
	if !ok {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}

	d.Kind = kind
	d.Roster = rosterFrom(t.Signers)
	d.Cursor = 0
	d.UpdatedAt = now
	return nil
}

// SetCustomRoster replaces the roster of an "other" draft. Order follows
// list position.
func (d *Draft) SetCustomRoster(entries []RosterEntry, now time.Time) error {
	if d.Kind != KindOther {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("custom rosters require kind %q", KindOther)}
	}
	if err := validateStruct(SetRosterCommand{Signers: entries}); err != nil {
		return err
	}

	roster := make([]Signer, len(entries))
	for i, e := range entries {
		roster[i] = Signer{
			Order:    i,
			Name:     e.Name,
			Role:     e.Role,
			Assignee: e.Assignee,
			Status:   SignerPending,
		}
	}

	d.Roster = roster
	d.Cursor = 0
	d.UpdatedAt = now
	return nil
}

// PlaceAnchor sets the anchor for slot, overwriting any prior anchor, and
// moves the placement cursor to the following slot.
func (d *Draft) PlaceAnchor(slot int, anchor Anchor, now time.Time) error {
	if slot < 0 || slot >= len(d.Roster) {
		return &ValidationError{Field: "slot", Reason: fmt.Sprintf("no slot %d in a roster of %d", slot, len(d.Roster))}
	}

	pageCount := 0
	if d.Source != nil {
		pageCount = d.Source.PageCount
	}
	if err := anchor.Validate(pageCount); err != nil {
		return err
	}

	d.Roster[slot].Anchor = &anchor
	d.Cursor = min(slot+1, len(d.Roster)-1)
	d.UpdatedAt = now
	return nil
}

// AttachFile swaps the source document. Anchors on pages past the new
// page count are cleared.
func (d *Draft) AttachFile(src SourceFile, now time.Time) {
	d.Source = &src

	if src.PageCount > 0 {
		for i := range d.Roster {
			if a := d.Roster[i].Anchor; a != nil && a.Page > src.PageCount {
				d.Roster[i].Anchor = nil
			}
		}
	}

	d.UpdatedAt = now
}

// Ready reports the first unmet submission precondition.
func (d *Draft) Ready() error {
	if d.Source == nil {
		return ErrNoFile
	}
	if len(d.Roster) == 0 {
		return ErrEmptyRoster
	}

	var missing []int
	for _, s := range d.Roster {
		if s.Anchor == nil {
			missing = append(missing, s.Order)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: slots %v", ErrIncompletePlacement, missing)
	}
	return nil
}

// Freeze produces the pending workflow for a ready draft. The draft itself
// is not modified.
func (d *Draft) Freeze(now time.Time) (*Workflow, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}

	roster := cloneRoster(d.Roster)
	for i := range roster {
		roster[i].Order = i
		roster[i].Status = SignerPending
		roster[i].Artifact = nil
		roster[i].Comment = nil
		roster[i].ActedAt = nil
	}

	w := &Workflow{
		ID:           uuid.New(),
		Title:        d.Title,
		Kind:         d.Kind,
		Creator:      d.Creator,
		Source:       *d.Source,
		Roster:       roster,
		CurrentIndex: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	w.Status = Derive(w.Roster, w.CurrentIndex)
	return w, nil
}

// Clone returns a deep copy.
func (d *Draft) Clone() *Draft {
	c := *d
	c.Source = clonePtr(d.Source)
	c.Roster = cloneRoster(d.Roster)
	return &c
}
