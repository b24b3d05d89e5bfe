package notifications

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/countersign/pkg/query"
	"github.com/JaimeStill/countersign/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "notifications", "n").
	Project("id", "ID").
	Project("user_ref", "UserRef").
	Project("kind", "Kind").
	Project("workflow_id", "WorkflowID").
	Project("title", "Title").
	Project("message", "Message").
	Project("read", "Read").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for notification queries.
type Filters struct {
	Kind *string `json:"kind,omitempty"`
	Read *bool   `json:"read,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Kind", f.Kind).
		WhereEquals("Read", f.Read)
}

// Matches evaluates the filters against an in-memory notification.
func (f Filters) Matches(n Notification) bool {
	if f.Kind != nil && n.Kind != *f.Kind {
		return false
	}
	if f.Read != nil && n.Read != *f.Read {
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
// An unparseable read value is ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if k := values.Get("kind"); k != "" {
		f.Kind = &k
	}
	if r := values.Get("read"); r != "" {
		if v, err := strconv.ParseBool(r); err == nil {
			f.Read = &v
		}
	}

	return f
}

func scanNotification(s repository.Scanner) (Notification, error) {
	var n Notification
	err := s.Scan(
		&n.ID,
		&n.UserRef,
		&n.Kind,
		&n.WorkflowID,
		&n.Title,
		&n.Message,
		&n.Read,
		&n.CreatedAt,
	)
	return n, err
}
