package ledger

import (
	"container/list"
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"donationledger/internal/domain"
)

// Resolver turns charity references into display data with one repository
// call per batch of distinct ids.
type Resolver struct {
	repo  domain.CharityRepository
	group singleflight.Group
	cache *lruCache
}

// NewResolver returns a resolver. cacheSize bounds the number of charities
// kept between calls; zero disables caching.
func NewResolver(repo domain.CharityRepository, cacheSize int) *Resolver {
	r := &Resolver{repo: repo}
	if cacheSize > 0 {
		r.cache = newLRUCache(cacheSize)
	}
	return r
}

// ResolveMany returns the charities found for ids. Ids that cannot be
// resolved are absent from the result; that is not an error.
func (r *Resolver) ResolveMany(ctx context.Context, ids []string) (map[string]domain.Charity, error) {
	distinct := distinctIDs(ids)
	out := make(map[string]domain.Charity, len(distinct))
	if len(distinct) == 0 {
		return out, nil
	}

	missing := distinct
	if r.cache != nil {
		missing = make([]string, 0, len(distinct))
		for _, id := range distinct {
			if ch, ok := r.cache.get(id); ok {
				out[id] = ch
				continue
			}
			missing = append(missing, id)
		}
		if len(missing) == 0 {
			return out, nil
		}
	}

	// The shared lookup outlives any one caller; each caller still stops
	// waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	call := r.group.DoChan(strings.Join(missing, "\x00"), func() (any, error) {
		return r.repo.GetMany(shared, missing)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-call:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	for _, ch := range res.Val.([]domain.Charity) {
		out[ch.ID] = ch
		if r.cache != nil {
			r.cache.put(ch)
		}
	}
	return out, nil
}

// distinctIDs drops blanks and duplicates and sorts the rest, so equal sets
// share a singleflight key.
func distinctIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type lruCache struct {
	mu    sync.Mutex
	size  int
	order *list.List
	items map[string]*list.Element
}

func newLRUCache(size int) *lruCache {
	return &lruCache{size: size, order: list.New(), items: make(map[string]*list.Element, size)}
}

func (c *lruCache) get(id string) (domain.Charity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return domain.Charity{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(domain.Charity), true
}

func (c *lruCache) put(ch domain.Charity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[ch.ID]; ok {
		el.Value = ch
		c.order.MoveToFront(el)
		return
	}
	c.items[ch.ID] = c.order.PushFront(ch)
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(domain.Charity).ID)
	}
}

func (c *lruCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
