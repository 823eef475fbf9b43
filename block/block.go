/*
Package block implements the key/value block codec used by sstable data
blocks.

    Block layout:
    +---------+-------+---------+-------------------------+-------------------------+---------------------------+
    | entry 1 |  ...  | entry n | restart offset 1 (4 b)  |  ...  restart offset m  | number of restarts (4 b)  |
    +---------+-------+---------+-------------------------+-------------------------+---------------------------+

    Entry:
    +----------------------+------------------------+--------------------------+---------------------+-------+
    | shared len (varint)  |  unshared len (varint) |  value len (varint)      |  unshared key bytes |  value |
    +----------------------+------------------------+--------------------------+---------------------+-------+

Keys at restart points are stored in full (shared len = 0), all other keys
are prefix-compressed against their predecessor.
*/
package block

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrCorrupt is returned when a block cannot be decoded.
var ErrCorrupt = errors.New("block: corrupt block")

// Block is a decoded, read-only block.
type Block struct {
	raw      []byte // full encoding
	data     []byte // entries section
	restarts []byte // restart offsets, 4 bytes each
}

// Decode validates an encoded block. The block retains data, which
// must not be modified afterwards.
func Decode(data []byte) (*Block, error) {
	if len(data) < 4 {
		return nil, errors.Wrapf(ErrCorrupt, "block too small, %d bytes", len(data))
	}

	num := int(binary.LittleEndian.Uint32(data[len(data)-4:]))
	limit := len(data) - 4 - 4*num
	if num < 0 || limit < 0 {
		return nil, errors.Wrapf(ErrCorrupt, "bad restart count %d", num)
	}

	b := &Block{raw: data, data: data[:limit], restarts: data[limit : len(data)-4]}
	if num == 0 && limit != 0 {
		return nil, errors.Wrap(ErrCorrupt, "entries without restart points")
	}

	prev := -1
	for i := 0; i < num; i++ {
		off := b.restartOffset(i)
		if (i == 0 && off != 0) || off <= prev || off >= limit {
			return nil, errors.Wrapf(ErrCorrupt, "bad restart offset %d at %d", off, i)
		}
		prev = off
	}
	return b, nil
}

// Bytes returns the encoded block.
func (b *Block) Bytes() []byte { return b.raw }

// Size returns the encoded size in bytes.
func (b *Block) Size() int { return len(b.raw) }

// Empty returns true if the block holds no entries.
func (b *Block) Empty() bool { return len(b.data) == 0 }

// Iter returns a new, unpositioned iterator.
func (b *Block) Iter() *Iterator { return &Iterator{b: b} }

func (b *Block) numRestarts() int { return len(b.restarts) / 4 }

func (b *Block) restartOffset(i int) int {
	return int(binary.LittleEndian.Uint32(b.restarts[i*4:]))
}

// restartKey returns the full key stored at the i-th restart point.
func (b *Block) restartKey(i int) ([]byte, bool) {
	off := b.restartOffset(i)
	shared, n := binary.Uvarint(b.data[off:])
	if n <= 0 || shared != 0 {
		return nil, false
	}
	pos := off + n

	unshared, n := binary.Uvarint(b.data[pos:])
	if n <= 0 {
		return nil, false
	}
	pos += n

	if _, n = binary.Uvarint(b.data[pos:]); n <= 0 {
		return nil, false
	}
	pos += n

	if uint64(len(b.data)-pos) < unshared {
		return nil, false
	}
	return b.data[pos : pos+int(unshared)], true
}

// --------------------------------------------------------------------

// Iterator is a forward cursor over the entries of a block.
type Iterator struct {
	b *Block

	key  []byte // current key, owned
	val  []byte // current value, points into the block
	next int    // offset of the following entry

	valid bool
	err   error
}

// SeekToFirst positions the cursor at the first entry.
func (i *Iterator) SeekToFirst() {
	i.err = nil
	i.key = i.key[:0]
	i.decode(0)
}

// SeekToKey positions the cursor at the first entry with a key >= target.
func (i *Iterator) SeekToKey(target []byte) {
	i.err = nil

	// find the last restart point with a key <= target
	var corrupt bool
	rpos := sort.Search(i.b.numRestarts(), func(n int) bool {
		key, ok := i.b.restartKey(n)
		if !ok {
			corrupt = true
			return true
		}
		return bytes.Compare(key, target) > 0
	}) - 1
	if corrupt {
		i.fail()
		return
	}
	if rpos < 0 {
		rpos = 0
	}

	i.key = i.key[:0]
	if i.b.numRestarts() == 0 {
		i.valid = false
		return
	}
	for i.decode(i.b.restartOffset(rpos)); i.valid && bytes.Compare(i.key, target) < 0; {
		i.Next()
	}
}

// Valid returns true if the cursor is positioned at an entry.
func (i *Iterator) Valid() bool { return i.valid }

// Key returns the key of the current entry. The returned slice is only
// valid until the next cursor move.
func (i *Iterator) Key() []byte { return i.key }

// Value returns the value of the current entry.
func (i *Iterator) Value() []byte { return i.val }

// Next advances the cursor to the next entry.
func (i *Iterator) Next() {
	if i.valid {
		i.decode(i.next)
	}
}

// Err exposes decoding errors, if any.
func (i *Iterator) Err() error { return i.err }

func (i *Iterator) decode(off int) {
	data := i.b.data
	if off >= len(data) {
		i.valid = false
		return
	}

	shared, n := binary.Uvarint(data[off:])
	if n <= 0 {
		i.fail()
		return
	}
	pos := off + n

	unshared, n := binary.Uvarint(data[pos:])
	if n <= 0 {
		i.fail()
		return
	}
	pos += n

	vlen, n := binary.Uvarint(data[pos:])
	if n <= 0 {
		i.fail()
		return
	}
	pos += n

	if shared > uint64(len(i.key)) || uint64(len(data)-pos) < unshared || uint64(len(data)-pos)-unshared < vlen {
		i.fail()
		return
	}

	kend := pos + int(unshared)
	vend := kend + int(vlen)
	i.key = append(i.key[:shared], data[pos:kend]...)
	i.val = data[kend:vend]
	i.next = vend
	i.valid = true
}

func (i *Iterator) fail() {
	i.valid = false
	i.key = i.key[:0]
	i.val = nil
	i.err = ErrCorrupt
}
