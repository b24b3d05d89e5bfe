package workflows

import (
	"database/sql"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/pkg/query"
	"github.com/JaimeStill/countersign/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "workflows", "w").
	Project("id", "ID").
	Project("title", "Title").
	Project("kind", "Kind").
	Project("creator_name", "CreatorName").
	Project("creator_role", "CreatorRole").
	Project("source_key", "SourceKey").
	Project("source_filename", "SourceFilename").
	Project("source_content_type", "SourceContentType").
	Project("source_size", "SourceSize").
	Project("source_page_count", "SourcePageCount").
	Project("current_index", "CurrentIndex").
	Project("status", "Status").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("completed_at", "CompletedAt")

var signerProjection = query.
	NewProjectionMap("public", "signers", "s").
	Project("workflow_id", "WorkflowID").
	Project("slot_order", "Order").
	Project("name", "Name").
	Project("role", "Role").
	Project("assignee", "Assignee").
	Project("status", "Status").
	Project("anchor_x", "AnchorX").
	Project("anchor_y", "AnchorY").
	Project("anchor_page", "AnchorPage").
	Project("artifact", "Artifact").
	Project("comment", "Comment").
	Project("acted_at", "ActedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var signerSort = []query.SortField{
	{Field: "WorkflowID"},
	{Field: "Order"},
}

// Filters contains optional filtering criteria for workflow queries.
// Nil fields are ignored. Status and Kind match exactly; Title and Creator
// are case-insensitive contains matches.
type Filters struct {
	Status  *string `json:"status,omitempty"`
	Kind    *string `json:"kind,omitempty"`
	Title   *string `json:"title,omitempty"`
	Creator *string `json:"creator,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Kind", f.Kind).
		WhereContains("Title", f.Title).
		WhereContains("CreatorName", f.Creator)
}

// Matches evaluates the filters against an in-memory workflow.
func (f Filters) Matches(w *Workflow) bool {
	if f.Status != nil && string(w.Status) != *f.Status {
		return false
	}
	if f.Kind != nil && string(w.Kind) != *f.Kind {
		return false
	}
	if f.Title != nil && !containsFold(w.Title, *f.Title) {
		return false
	}
	if f.Creator != nil && !containsFold(w.Creator.Name, *f.Creator) {
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if k := values.Get("kind"); k != "" {
		f.Kind = &k
	}
	if t := values.Get("title"); t != "" {
		f.Title = &t
	}
	if c := values.Get("creator"); c != "" {
		f.Creator = &c
	}

	return f
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func scanWorkflow(s repository.Scanner) (Workflow, error) {
	var (
		w         Workflow
		completed sql.NullTime
	)
	err := s.Scan(
		&w.ID,
		&w.Title,
		&w.Kind,
		&w.Creator.Name,
		&w.Creator.Role,
		&w.Source.Key,
		&w.Source.Filename,
		&w.Source.ContentType,
		&w.Source.Size,
		&w.Source.PageCount,
		&w.CurrentIndex,
		&w.Status,
		&w.CreatedAt,
		&w.UpdatedAt,
		&completed,
	)
	if completed.Valid {
		w.CompletedAt = &completed.Time
	}
	return w, err
}

type signerRow struct {
	workflowID uuid.UUID
	signer     Signer
}

func scanSigner(s repository.Scanner) (signerRow, error) {
	var (
		row      signerRow
		assignee sql.NullString
		x, y     sql.NullFloat64
		page     sql.NullInt32
		artifact sql.NullString
		comment  sql.NullString
		actedAt  sql.NullTime
	)
	err := s.Scan(
		&row.workflowID,
		&row.signer.Order,
		&row.signer.Name,
		&row.signer.Role,
		&assignee,
		&row.signer.Status,
		&x,
		&y,
		&page,
		&artifact,
		&comment,
		&actedAt,
	)
	if err != nil {
		return row, err
	}

	row.signer.Assignee = assignee.String
	if page.Valid {
		row.signer.Anchor = &Anchor{X: x.Float64, Y: y.Float64, Page: int(page.Int32)}
	}
	if artifact.Valid {
		row.signer.Artifact = &artifact.String
	}
	if comment.Valid {
		row.signer.Comment = &comment.String
	}
	if actedAt.Valid {
		row.signer.ActedAt = &actedAt.Time
	}
	return row, nil
}
