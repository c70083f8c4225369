package assets

import (
	"container/list"
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	// Budget bounds decoded bytes held for unreferenced assets;
	// zero or negative means unbounded. Referenced assets are never
	// evicted, so live usage may exceed the budget.
	Budget int64

	// Natives is the host call table scripts are verified against.
	Natives vm.NativeSet
}

// Cache memoizes decoded assets by record id. Concurrent cold gets for
// one id coalesce into a single decode; handles are reference counted,
// and unreferenced assets are evicted least-recently-used once decoded
// bytes exceed the budget. Eviction never loses data: the container
// re-supplies bytes and the next get re-decodes.
type Cache struct {
	src     *container.Package
	natives vm.NativeSet
	budget  int64
	log     commonlog.Logger
	group   singleflight.Group

	mu            sync.Mutex
	entries       map[container.RecordID]*cacheEntry
	idle          *list.List // unreferenced entries, most recent at front
	bytes         int64
	hits          uint64
	misses        uint64
	evictions     uint64
	substitutions uint64
}

type cacheEntry struct {
	id    container.RecordID
	asset Asset
	size  int64
	refs  int
	elem  *list.Element // set while on the idle list
}

// Stats is a point-in-time snapshot of cache behavior. Misses count
// decode operations, so N concurrent cold gets for one id report one
// miss and N-1 hits.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Substitutions uint64
	Bytes         int64
	Entries       int
}

// NewCache builds a cache over an opened package.
func NewCache(src *container.Package, opts CacheOptions) *Cache {
	return &Cache{
		src:     src,
		natives: opts.Natives,
		budget:  opts.Budget,
		log:     commonlog.GetLogger("epoch.assets"),
		entries: make(map[container.RecordID]*cacheEntry),
		idle:    list.New(),
	}
}

// Handle is a live reference to a cached asset. The asset stays
// resident until every handle is released.
type Handle struct {
	cache *Cache
	entry *cacheEntry
	once  sync.Once
}

// Asset returns the decoded value.
func (h *Handle) Asset() Asset { return h.entry.asset }

// ID returns the record id the handle resolves.
func (h *Handle) ID() container.RecordID { return h.entry.id }

// Release drops the reference. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.cache.release(h.entry)
	})
}

// Get resolves an asset, decoding at most once per id no matter how
// many goroutines ask. Context cancellation abandons the wait, not the
// decode; a later get picks up the published value.
func (c *Cache) Get(ctx context.Context, id container.RecordID) (*Handle, error) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		c.refLocked(e)
		c.hits++
		c.mu.Unlock()
		return &Handle{cache: c, entry: e}, nil
	}
	c.mu.Unlock()

	key := strconv.FormatUint(uint64(id), 16)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		asset := res.Val.(Asset)

		c.mu.Lock()
		e, ok := c.entries[id]
		if !ok {
			e = &cacheEntry{id: id, asset: asset, size: int64(asset.MemSize())}
			c.entries[id] = e
			c.bytes += e.size
		} else {
			c.hits++
		}
		c.refLocked(e)
		c.evictLocked()
		c.mu.Unlock()
		return &Handle{cache: c, entry: e}, nil
	}
}

// load reads and decodes one record; runs inside the singleflight.
func (c *Cache) load(id container.RecordID) (Asset, error) {
	rec, err := c.src.Record(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()

	asset, err := Decode(rec, c.natives)
	if err == nil {
		return asset, nil
	}
	if errors.Is(err, ErrMalformedAsset) {
		if sub, ok := Placeholder(rec.Kind); ok {
			c.log.Warningf("substituting for %s %q: %s", rec.Kind, rec.Path, err)
			c.mu.Lock()
			c.substitutions++
			c.mu.Unlock()
			return sub, nil
		}
	}
	return nil, err
}

// refLocked pins an entry, removing it from the idle list if present.
func (c *Cache) refLocked(e *cacheEntry) {
	if e.elem != nil {
		c.idle.Remove(e.elem)
		e.elem = nil
	}
	e.refs++
}

func (c *Cache) release(e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.refs--
	if e.refs > 0 {
		return
	}
	// Entry may already have been evicted and re-decoded under a new
	// identity; only list entries that are still current.
	if c.entries[e.id] == e {
		e.elem = c.idle.PushFront(e)
		c.evictLocked()
	}
}

// evictLocked trims unreferenced entries, oldest first, until decoded
// bytes fit the budget.
func (c *Cache) evictLocked() {
	if c.budget <= 0 {
		return
	}
	for c.bytes > c.budget {
		back := c.idle.Back()
		if back == nil {
			return
		}
		e := back.Value.(*cacheEntry)
		c.idle.Remove(back)
		e.elem = nil
		delete(c.entries, e.id)
		c.bytes -= e.size
		c.evictions++
	}
}

// Stats snapshots the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Substitutions: c.substitutions,
		Bytes:         c.bytes,
		Entries:       len(c.entries),
	}
}
