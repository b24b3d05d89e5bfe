package notifications

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/pkg/pagination"
)

type memoryInbox struct {
	mu    sync.RWMutex
	items []Notification
}

// NewMemoryInbox creates a process-local Inbox.
func NewMemoryInbox() Inbox {
	return &memoryInbox{}
}

func (m *memoryInbox) Insert(ctx context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.ID == n.ID {
			return ErrDuplicate
		}
	}
	m.items = append(m.items, n)
	return nil
}

func (m *memoryInbox) List(
	ctx context.Context,
	userRef string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Notification], error) {
	m.mu.RLock()
	matched := make([]Notification, 0)
	for _, n := range m.items {
		if n.UserRef != userRef || !filters.Matches(n) {
			continue
		}
		if page.Search != nil && *page.Search != "" && !matchesSearch(n, *page.Search) {
			continue
		}
		matched = append(matched, n)
	}
	m.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	result := pagination.NewPageResult(matched[start:end], total, page.Page, page.PageSize)
	return &result, nil
}

func (m *memoryInbox) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Read = true
			n := m.items[i]
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryInbox) MarkAllRead(ctx context.Context, userRef string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for i := range m.items {
		if m.items[i].UserRef == userRef && !m.items[i].Read {
			m.items[i].Read = true
			count++
		}
	}
	return count, nil
}

func matchesSearch(n Notification, search string) bool {
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(n.Title), s) ||
		strings.Contains(strings.ToLower(n.Message), s)
}
