package sstable

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/bsm/sstable/block"
	"github.com/cockroachdb/errors"
)

// Builder instances build a table from key/value pairs which must be
// added in ascending key order. A builder is single-use.
type Builder struct {
	o *Options

	block    *block.Builder // the pending block
	firstKey []byte         // the first key of the pending block
	lastKey  []byte         // the last added key
	entries  int            // the number of added entries

	metas []BlockMeta // finished block index
	data  []byte      // finished, framed blocks
	snp   []byte      // compression buffer

	done bool
}

// NewBuilder inits a new builder.
func NewBuilder(o *Options) *Builder {
	o = o.norm()
	return &Builder{
		o:     o,
		block: block.NewBuilder(o.BlockSize, o.BlockRestartInterval),
	}
}

// Add appends a key/value pair. Keys must not be smaller than any
// previously added key.
func (b *Builder) Add(key, value []byte) error {
	if b.done {
		return ErrBuilderDone
	}

	if b.entries != 0 && bytes.Compare(key, b.lastKey) < 0 {
		return errors.Mark(errors.Newf("sstable: attempted an out-of-order add, %q must be >= %q", key, b.lastKey), ErrOrdering)
	}

	if b.block.Empty() {
		b.firstKey = append(b.firstKey[:0], key...)
	}

	if !b.block.Add(key, value) {
		if b.block.Empty() {
			b.firstKey = b.firstKey[:0]
			return b.errCapacity(key, value)
		}

		if err := b.finishBlock(); err != nil {
			return err
		}

		b.firstKey = append(b.firstKey[:0], key...)
		if !b.block.Add(key, value) {
			b.firstKey = b.firstKey[:0]
			return b.errCapacity(key, value)
		}
	}

	b.lastKey = append(b.lastKey[:0], key...)
	b.entries++
	return nil
}

// EstimatedSize returns the size of the data written so far. It does not
// include the pending block or the index.
func (b *Builder) EstimatedSize() int {
	return len(b.data)
}

// Build finishes the table, persists it at path and opens it. The
// returned table is registered with cache under id.
func (b *Builder) Build(id uint64, cache *BlockCache, path string) (*Table, error) {
	buf, indexOffset, err := b.finish()
	if err != nil {
		return nil, err
	}

	file, err := CreateFile(path, buf)
	if err != nil {
		return nil, err
	}

	b.o.Metrics.tableWritten(len(buf))
	b.o.Logger.Debug("sstable: built table", "id", id, "path", path, "blocks", len(b.metas), "bytes", len(buf))
	return newTable(id, cache, file, b.metas, indexOffset, b.o), nil
}

// BuildInMemory finishes the table and opens it from memory.
func (b *Builder) BuildInMemory(id uint64, cache *BlockCache) (*Table, error) {
	buf, indexOffset, err := b.finish()
	if err != nil {
		return nil, err
	}

	b.o.Metrics.tableWritten(len(buf))
	b.o.Logger.Debug("sstable: built table", "id", id, "blocks", len(b.metas), "bytes", len(buf))
	return newTable(id, cache, NewMemFile(buf), b.metas, indexOffset, b.o), nil
}

// finish flushes the pending block and returns the full table encoding
// together with the index offset.
func (b *Builder) finish() ([]byte, uint32, error) {
	if b.done {
		return nil, 0, ErrBuilderDone
	}
	if err := b.finishBlock(); err != nil {
		return nil, 0, err
	}
	if uint64(len(b.data)) > math.MaxUint32 {
		return nil, 0, errors.Mark(errors.Newf("sstable: data size %d exceeds index offset range", len(b.data)), ErrCapacity)
	}
	b.done = true

	indexOffset := uint32(len(b.data))
	buf := EncodeBlockMeta(b.data, b.metas)
	buf = binary.LittleEndian.AppendUint32(buf, indexOffset)
	return buf, indexOffset, nil
}

func (b *Builder) finishBlock() error {
	if b.block.Empty() {
		return nil
	}

	offset := len(b.data)
	if uint64(offset) > math.MaxUint32 {
		return errors.Mark(errors.Newf("sstable: block offset %d exceeds offset range", offset), ErrCapacity)
	}

	data, snp, err := appendFrame(b.data, b.block.Finish(), b.snp, b.o.Compression)
	if err != nil {
		return err
	}

	b.data, b.snp = data, snp
	b.metas = append(b.metas, BlockMeta{
		Offset:   uint32(offset),
		FirstKey: append([]byte(nil), b.firstKey...),
	})
	b.firstKey = b.firstKey[:0]
	b.block.Reset()
	b.o.Metrics.blockWritten()
	return nil
}

func (b *Builder) errCapacity(key, value []byte) error {
	return errors.Mark(errors.Newf("sstable: entry of %d bytes does not fit into a block of %d bytes", len(key)+len(value), b.o.BlockSize), ErrCapacity)
}
