package sstable

import (
	"bytes"
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bsm/sstable/block"
	"github.com/cockroachdb/errors"
)

// Table is an immutable, persisted table. Tables are safe for concurrent
// use by multiple iterators.
type Table struct {
	id    uint64
	file  File
	cache *BlockCache
	o     *Options

	index       []BlockMeta
	indexOffset uint32
	closed      atomic.Bool

	lastKeyOnce sync.Once
	lastKey     []byte
	lastKeyErr  error
}

func newTable(id uint64, cache *BlockCache, file File, index []BlockMeta, indexOffset uint32, o *Options) *Table {
	return &Table{
		id:          id,
		file:        file,
		cache:       cache,
		o:           o,
		index:       index,
		indexOffset: indexOffset,
	}
}

// Open opens a table from file. Blocks are cached in cache (optional)
// under id.
func Open(id uint64, cache *BlockCache, file File, o *Options) (*Table, error) {
	o = o.norm()

	// read footer
	size := file.Size()
	if size < footerLen {
		return nil, errors.Mark(errors.Newf("sstable: file too small, %d bytes", size), ErrFormat)
	}
	footer, err := readRange(file, size-footerLen, footerLen)
	if err != nil {
		return nil, err
	}

	// parse footer
	indexOffset := binary.LittleEndian.Uint32(footer)
	if int64(indexOffset) > size-footerLen {
		return nil, errors.Mark(errors.Newf("sstable: index offset %d beyond end of file", indexOffset), ErrFormat)
	}

	// read index
	raw, err := readRange(file, int64(indexOffset), size-footerLen-int64(indexOffset))
	if err != nil {
		return nil, err
	}
	index, err := DecodeBlockMeta(raw)
	if err != nil {
		return nil, err
	}
	if err := validateBlockMeta(index, indexOffset); err != nil {
		return nil, err
	}

	o.Logger.Debug("sstable: opened table", "id", id, "blocks", len(index), "bytes", size)
	return newTable(id, cache, file, index, indexOffset, o), nil
}

// ID returns the table ID.
func (t *Table) ID() uint64 { return t.id }

// Size returns the size of the table file in bytes.
func (t *Table) Size() int64 { return t.file.Size() }

// NumBlocks returns the number of stored blocks.
func (t *Table) NumBlocks() int {
	return len(t.index)
}

// BlockMeta returns the index entry of the n-th block.
func (t *Table) BlockMeta(n int) BlockMeta {
	return t.index[n]
}

// FirstKey returns the smallest key in the table or nil if the table is
// empty.
func (t *Table) FirstKey() []byte {
	if len(t.index) == 0 {
		return nil
	}
	return t.index[0].FirstKey
}

// LastKey returns the largest key in the table or nil if the table is
// empty. The key is determined on first use by scanning the last block.
func (t *Table) LastKey() ([]byte, error) {
	t.lastKeyOnce.Do(func() {
		if len(t.index) == 0 {
			return
		}

		blk, err := t.ReadBlockCached(len(t.index) - 1)
		if err != nil {
			t.lastKeyErr = err
			return
		}

		iter := blk.Iter()
		for iter.SeekToFirst(); iter.Valid(); iter.Next() {
			t.lastKey = append(t.lastKey[:0], iter.Key()...)
		}
		t.lastKeyErr = iter.Err()
	})
	return t.lastKey, t.lastKeyErr
}

// FindBlockIdx returns the index of the last block with a first key <=
// key. It returns 0 if key is smaller than every first key.
func (t *Table) FindBlockIdx(key []byte) int {
	n := sort.Search(len(t.index), func(i int) bool {
		return bytes.Compare(t.index[i].FirstKey, key) > 0
	})
	if n > 0 {
		return n - 1
	}
	return 0
}

// ReadBlock reads and decodes the n-th block from storage.
func (t *Table) ReadBlock(n int) (*block.Block, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if n < 0 || n >= len(t.index) {
		return nil, errors.Newf("sstable: block %d out of range [0,%d)", n, len(t.index))
	}

	min := t.index[n].Offset
	max := t.indexOffset
	if next := n + 1; next < len(t.index) {
		max = t.index[next].Offset
	}

	frame, err := readRange(t.file, int64(min), int64(max-min))
	if err != nil {
		return nil, err
	}

	payload, err := decodeFrame(frame)
	if err != nil {
		t.o.Metrics.corrupted()
		return nil, errors.Wrapf(err, "sstable: table %d block %d", t.id, n)
	}

	blk, err := block.Decode(payload)
	if err != nil {
		t.o.Metrics.corrupted()
		return nil, markCorrupt(errors.Wrapf(err, "sstable: table %d block %d", t.id, n))
	}

	t.o.Metrics.blockRead("storage")
	return blk, nil
}

// ReadBlockCached returns the n-th block, consulting the block cache
// first, if configured.
func (t *Table) ReadBlockCached(n int) (*block.Block, error) {
	if t.cache == nil || t.closed.Load() {
		return t.ReadBlock(n)
	}

	if blk, ok := t.cache.Get(t.id, n); ok {
		t.o.Metrics.blockRead("cache")
		return blk, nil
	}

	blk, err := t.ReadBlock(n)
	if err != nil {
		return nil, err
	}
	t.cache.Insert(t.id, n, blk)
	return blk, nil
}

// Append retrieves a single value for a key. Unlike Get it
// appends it to dst instead of allocating a new byte slice.
// It may return an ErrNotFound error.
func (t *Table) Append(dst, key []byte) ([]byte, error) {
	iter, err := t.Seek(key)
	if err != nil {
		return dst, err
	}

	if !iter.Valid() || !bytes.Equal(iter.Key(), key) {
		return dst, ErrNotFound
	}
	return append(dst, iter.Value()...), nil
}

// Get is a shortcut for Append(nil, key).
// It may return an ErrNotFound error.
func (t *Table) Get(key []byte) ([]byte, error) {
	return t.Append(nil, key)
}

// SeekToFirst returns an iterator positioned at the first entry.
func (t *Table) SeekToFirst() (*Iterator, error) {
	iter := &Iterator{t: t}
	if err := iter.SeekToFirst(); err != nil {
		return nil, err
	}
	return iter, nil
}

// Seek returns an iterator positioned at the first entry >= key.
func (t *Table) Seek(key []byte) (*Iterator, error) {
	iter := &Iterator{t: t}
	if err := iter.SeekToKey(key); err != nil {
		return nil, err
	}
	return iter, nil
}

// Close closes the table and releases the underlying file. Cached blocks
// of the table are dropped.
func (t *Table) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.cache != nil {
		t.cache.Remove(t.id)
	}
	return t.file.Close()
}
