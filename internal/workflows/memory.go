package workflows

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/pkg/pagination"
	"github.com/JaimeStill/countersign/pkg/query"
)

type memoryEntry struct {
	mu sync.Mutex
	w  *Workflow
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*memoryEntry
}

// NewMemoryStore creates a process-local Store. Each workflow has its own
// lock, so transitions on different workflows never contend.
func NewMemoryStore() Store {
	return &memoryStore{
		entries: make(map[uuid.UUID]*memoryEntry),
	}
}

func (s *memoryStore) Insert(ctx context.Context, w *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[w.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, w.ID)
	}
	s.entries[w.ID] = &memoryEntry{w: w.Clone()}
	return nil
}

func (s *memoryStore) Find(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.Clone(), nil
}

func (s *memoryStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Workflow], error) {
	matched := make([]Workflow, 0)
	for _, w := range s.snapshot() {
		if !filters.Matches(w) {
			continue
		}
		if page.Search != nil && *page.Search != "" &&
			!containsFold(w.Title, *page.Search) &&
			!containsFold(w.Creator.Name, *page.Search) {
			continue
		}
		matched = append(matched, *w)
	}

	sortWorkflows(matched, page.Sort)

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	result := pagination.NewPageResult(matched[start:end], total, page.Page, page.PageSize)
	return &result, nil
}

func (s *memoryStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	for _, w := range s.snapshot() {
		stats.add(w.Status, 1)
	}
	return &stats, nil
}

func (s *memoryStore) Transition(
	ctx context.Context,
	id uuid.UUID,
	fn func(*Workflow) error,
) (*Workflow, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next := e.w.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	e.w = next
	return next.Clone(), nil
}

func (s *memoryStore) entry(id uuid.UUID) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *memoryStore) snapshot() []*Workflow {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*Workflow, len(entries))
	for i, e := range entries {
		e.mu.Lock()
		out[i] = e.w.Clone()
		e.mu.Unlock()
	}
	return out
}

var memorySortKeys = map[string]func(a, b *Workflow) int{
	"CreatedAt": func(a, b *Workflow) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"UpdatedAt": func(a, b *Workflow) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"Title":     func(a, b *Workflow) int { return cmp.Compare(a.Title, b.Title) },
	"Status":    func(a, b *Workflow) int { return cmp.Compare(a.Status, b.Status) },
	"Kind":      func(a, b *Workflow) int { return cmp.Compare(a.Kind, b.Kind) },
}

func sortWorkflows(ws []Workflow, fields []query.SortField) {
	if len(fields) == 0 {
		fields = []query.SortField{defaultSort}
	}

	slices.SortStableFunc(ws, func(a, b Workflow) int {
		for _, f := range fields {
			compare, ok := memorySortKeys[f.Field]
			if !ok {
				continue
			}
			c := compare(&a, &b)
			if f.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
