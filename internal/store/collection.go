package store

import (
	"sort"
	"sync"
	"time"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

// Item is the constraint for entities held in a Collection: a stable store
// key plus the updated_at timestamp arbitration compares.
type Item interface {
	StoreKey() string
	UpdatedTime() time.Time
}

// Collection is a generic in-memory cache for one entity type with
// source-aware arbitration. All methods are safe for concurrent use;
// listeners registered via Subscribe fire once per mutating call, after the
// whole batch has been applied.
type Collection[T Item] struct {
	mu    sync.RWMutex
	items map[string]T

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewCollection creates an empty collection.
func NewCollection[T Item]() *Collection[T] {
	return &Collection[T]{
		items: make(map[string]T),
		subs:  make(map[int]func()),
	}
}

// shouldReplace is the arbitration rule. Push is authoritative even when
// its timestamp is older than the stored value; otherwise ties go to the
// incoming write so re-application is idempotent.
func shouldReplace[T Item](existing T, exists bool, incoming T, source domain.UpdateSource) bool {
	if source == domain.SourcePush {
		return true
	}
	if !exists {
		return true
	}
	return !incoming.UpdatedTime().Before(existing.UpdatedTime())
}

// Set replaces the entire contents with items. Used for initial hydration;
// no arbitration applies.
func (c *Collection[T]) Set(items []T, source domain.UpdateSource) {
	c.mu.Lock()
	c.items = make(map[string]T, len(items))
	for _, item := range items {
		c.items[item.StoreKey()] = item
	}
	c.mu.Unlock()
	c.notify()
}

// Add inserts item if arbitration accepts it.
func (c *Collection[T]) Add(item T, source domain.UpdateSource) {
	c.mu.Lock()
	changed := c.applyLocked(item, source)
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Upsert inserts or replaces item if arbitration accepts it.
func (c *Collection[T]) Upsert(item T, source domain.UpdateSource) {
	c.Add(item, source)
}

// Update applies patch to the stored item with the given key. A missing key
// is a silent no-op. The patched value goes through arbitration like any
// other incoming write.
func (c *Collection[T]) Update(key string, patch func(T) T, source domain.UpdateSource) {
	c.mu.Lock()
	existing, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	changed := c.applyLocked(patch(existing), source)
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Remove deletes the item with the given key. The source parameter keeps
// the call signature uniform; removal is unconditional.
func (c *Collection[T]) Remove(key string, source domain.UpdateSource) {
	c.mu.Lock()
	_, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()
	if ok {
		c.notify()
	}
}

// Get returns the item with the given key.
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	return item, ok
}

// All returns a copy of the contents sorted by store key, so callers get a
// deterministic order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreKey() < out[j].StoreKey() })
	return out
}

// Len returns the number of stored items.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reconcile applies a batch of incoming items. For push the batch is the
// complete authoritative set: stored keys absent from it are deleted. For
// api and local sources it is a partial merge and unlisted keys are left
// untouched. Listeners fire at most once for the whole batch.
func (c *Collection[T]) Reconcile(items []T, source domain.UpdateSource) {
	c.mu.Lock()
	changed := false
	for _, item := range items {
		if c.applyLocked(item, source) {
			changed = true
		}
	}
	if source == domain.SourcePush {
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			seen[item.StoreKey()] = struct{}{}
		}
		for key := range c.items {
			if _, ok := seen[key]; !ok {
				delete(c.items, key)
				changed = true
			}
		}
	}
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Subscribe registers a listener called after every applied mutation. The
// returned function cancels the subscription.
func (c *Collection[T]) Subscribe(fn func()) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Collection[T]) applyLocked(item T, source domain.UpdateSource) bool {
	key := item.StoreKey()
	existing, ok := c.items[key]
	if !shouldReplace(existing, ok, item, source) {
		return false
	}
	c.items[key] = item
	return true
}

func (c *Collection[T]) notify() {
	c.subMu.Lock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
