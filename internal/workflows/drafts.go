package workflows

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// drafts is an expiring registry of in-flight drafts. The mutex serializes
// read-modify-write edits; the cache only provides expiry.
type drafts struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func newDrafts(ttl time.Duration) *drafts {
	return &drafts{
		cache: cache.New(ttl, cleanupInterval(ttl)),
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 10 * time.Minute
	}
	return max(ttl/4, time.Minute)
}

func (r *drafts) put(d *Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.SetDefault(d.ID.String(), d.Clone())
}

func (r *drafts) get(id uuid.UUID) (*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// update applies fn to a copy of the draft and stores it only when fn
// succeeds. Each edit refreshes the expiry.
func (r *drafts) update(id uuid.UUID, fn func(*Draft) error) (*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	next := d.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	r.cache.SetDefault(id.String(), next)
	return next.Clone(), nil
}

// take removes a draft so that only one caller can submit it.
// restore puts it back when the submission fails.
func (r *drafts) take(id uuid.UUID) (*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	r.cache.Delete(id.String())
	return d, nil
}

func (r *drafts) restore(d *Draft) {
	r.put(d)
}

func (r *drafts) lookup(id uuid.UUID) (*Draft, error) {
	v, ok := r.cache.Get(id.String())
	if !ok {
		return nil, ErrDraftNotFound
	}
	return v.(*Draft), nil
}
