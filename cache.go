package sstable

import (
	"log/slog"
	"sync/atomic"

	"github.com/bsm/sstable/block"
	"github.com/zhangyunhao116/skipmap"
)

type cacheKey struct {
	table uint64
	block int
}

func (k cacheKey) less(o cacheKey) bool {
	if k.table != o.table {
		return k.table < o.table
	}
	return k.block < o.block
}

type cacheEntry struct {
	blk        *block.Block
	referenced atomic.Bool
}

// CacheStats contains block cache statistics.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// BlockCache is a concurrent cache of decoded blocks, shared by tables
// and addressed by table ID and block index. Its size is bounded in bytes,
// entries are evicted using the CLOCK (second-chance) policy.
type BlockCache struct {
	entries  *skipmap.FuncMap[cacheKey, *cacheEntry]
	capacity int64
	size     atomic.Int64

	hits, misses, evictions atomic.Int64

	logger  *slog.Logger
	metrics *Metrics
}

// NewBlockCache inits a new cache with a capacity in bytes.
// Default capacity: 8MiB.
func NewBlockCache(capacity int64, o *Options) *BlockCache {
	o = o.norm()
	if capacity < 1 {
		capacity = 8 << 20
	}
	return &BlockCache{
		entries: skipmap.NewFunc[cacheKey, *cacheEntry](func(a, b cacheKey) bool {
			return a.less(b)
		}),
		capacity: capacity,
		logger:   o.Logger,
		metrics:  o.Metrics,
	}
}

// Get returns a cached block.
func (c *BlockCache) Get(table uint64, idx int) (*block.Block, bool) {
	ent, ok := c.entries.Load(cacheKey{table: table, block: idx})
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	ent.referenced.Store(true)
	c.hits.Add(1)
	return ent.blk, true
}

// Insert adds a block to the cache. If the block is already cached, the
// existing entry is retained.
func (c *BlockCache) Insert(table uint64, idx int, blk *block.Block) {
	ent := &cacheEntry{blk: blk}
	ent.referenced.Store(true)

	if _, loaded := c.entries.LoadOrStore(cacheKey{table: table, block: idx}, ent); loaded {
		return
	}
	if c.size.Add(int64(blk.Size())) > c.capacity {
		c.evict()
	}
}

// Remove drops all cached blocks of a table.
func (c *BlockCache) Remove(table uint64) {
	c.entries.Range(func(key cacheKey, _ *cacheEntry) bool {
		if key.table < table {
			return true
		} else if key.table > table {
			return false
		}
		c.delete(key)
		return true
	})
}

// Len returns the number of cached blocks.
func (c *BlockCache) Len() int { return c.entries.Len() }

// Size returns the total size of cached blocks in bytes.
func (c *BlockCache) Size() int64 { return c.size.Load() }

// Stats returns cache statistics.
func (c *BlockCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *BlockCache) evict() {
	// the first pass clears reference bits, the second evicts
	for pass := 0; pass < 2 && c.size.Load() > c.capacity; pass++ {
		c.entries.Range(func(key cacheKey, ent *cacheEntry) bool {
			if c.size.Load() <= c.capacity {
				return false
			}
			if ent.referenced.Swap(false) {
				return true
			}
			if c.delete(key) {
				c.evictions.Add(1)
				c.metrics.cacheEvicted()
				c.logger.Debug("sstable: evicted block", "table", key.table, "block", key.block)
			}
			return true
		})
	}
}

func (c *BlockCache) delete(key cacheKey) bool {
	ent, ok := c.entries.LoadAndDelete(key)
	if ok {
		c.size.Add(-int64(ent.blk.Size()))
	}
	return ok
}
