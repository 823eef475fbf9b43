package sstable

import "github.com/bsm/sstable/block"

// Iterator is a forward cursor across all entries of a table. It combines
// a cursor within the current block with advancing across block
// boundaries. Iterators are not safe for concurrent use, but any number
// of iterators may share a table.
type Iterator struct {
	t *Table

	bpos  int             // the current block position
	block *block.Iterator // the current block cursor

	err error
}

// SeekToFirst positions the iterator at the first entry of the table.
// The iterator is invalid if the table is empty.
func (i *Iterator) SeekToFirst() error {
	i.reset()
	if i.t.NumBlocks() == 0 {
		return nil
	}

	bi, err := i.load(0)
	if err != nil {
		return err
	}
	bi.SeekToFirst()
	return i.settle(bi)
}

// SeekToKey positions the iterator at the first entry with a key >= key.
// If the key falls past the last entry of the candidate block the
// iterator moves on to the first entry of the following block. The
// iterator is invalid if key exceeds every key in the table.
func (i *Iterator) SeekToKey(key []byte) error {
	i.reset()
	if i.t.NumBlocks() == 0 {
		return nil
	}

	bi, err := i.load(i.t.FindBlockIdx(key))
	if err != nil {
		return err
	}
	bi.SeekToKey(key)
	return i.settle(bi)
}

// Valid returns true if the iterator is positioned at an entry.
func (i *Iterator) Valid() bool {
	return i.block != nil && i.block.Valid()
}

// Key returns the key of the current entry. Please note that keys are
// temporary buffers and must be copied if used beyond the next cursor move.
// Must only be called when Valid.
func (i *Iterator) Key() []byte { return i.block.Key() }

// Value returns the value of the current entry.
// Must only be called when Valid.
func (i *Iterator) Value() []byte { return i.block.Value() }

// Next advances the cursor to the next entry. Once the last entry of the
// table is passed, the iterator becomes invalid.
func (i *Iterator) Next() error {
	if !i.Valid() {
		return nil
	}

	i.block.Next()
	return i.settle(i.block)
}

// Err exposes iterator errors, if any.
func (i *Iterator) Err() error {
	return i.err
}

// settle installs a positioned block cursor, rolling forward to the first
// entry of subsequent blocks while the cursor is exhausted.
func (i *Iterator) settle(bi *block.Iterator) error {
	for {
		if err := bi.Err(); err != nil {
			return i.fail(markCorrupt(err))
		}

		i.block = bi
		if bi.Valid() {
			return nil
		}

		if i.bpos+1 >= i.t.NumBlocks() {
			return nil
		}

		next, err := i.load(i.bpos + 1)
		if err != nil {
			return err
		}
		next.SeekToFirst()
		bi = next
	}
}

// load fetches a block and returns an unpositioned cursor.
func (i *Iterator) load(bpos int) (*block.Iterator, error) {
	blk, err := i.t.ReadBlockCached(bpos)
	if err != nil {
		return nil, i.fail(err)
	}

	i.bpos = bpos
	return blk.Iter(), nil
}

func (i *Iterator) fail(err error) error {
	i.block = nil
	i.err = err
	return err
}

func (i *Iterator) reset() {
	i.bpos = 0
	i.block = nil
	i.err = nil
}
