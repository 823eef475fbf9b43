package block

import "encoding/binary"

// Builder accumulates sorted key/value pairs into a single block of a
// bounded size.
type Builder struct {
	capacity int
	interval int

	buf      []byte   // encoded entries
	restarts []uint32 // restart point offsets
	counter  int      // entries since the last restart point
	lastKey  []byte

	tmp [3 * binary.MaxVarintLen64]byte
}

// NewBuilder inits a builder which will not grow beyond capacity bytes.
// Every restartInterval entries a full key is stored.
func NewBuilder(capacity, restartInterval int) *Builder {
	if restartInterval < 1 {
		restartInterval = 1
	}
	return &Builder{
		capacity: capacity,
		interval: restartInterval,
	}
}

// Add appends an entry. It returns false, leaving the builder unchanged,
// if the entry would push the encoded block beyond its capacity.
func (b *Builder) Add(key, value []byte) bool {
	restart := len(b.buf) == 0 || b.counter >= b.interval

	shared := 0
	if !restart {
		shared = sharedPrefixLen(b.lastKey, key)
	}

	n := binary.PutUvarint(b.tmp[0:], uint64(shared))
	n += binary.PutUvarint(b.tmp[n:], uint64(len(key)-shared))
	n += binary.PutUvarint(b.tmp[n:], uint64(len(value)))

	grow := n + len(key) - shared + len(value)
	if restart {
		grow += 4
	}
	if b.EstimatedSize()+grow > b.capacity {
		return false
	}

	if restart {
		b.restarts = append(b.restarts, uint32(len(b.buf)))
		b.counter = 0
	}
	b.buf = append(b.buf, b.tmp[:n]...)
	b.buf = append(b.buf, key[shared:]...)
	b.buf = append(b.buf, value...)
	b.lastKey = append(b.lastKey[:0], key...)
	b.counter++
	return true
}

// Empty returns true if no entries were added since the last reset.
func (b *Builder) Empty() bool { return len(b.buf) == 0 }

// EstimatedSize returns the size of the block if it was finished now.
func (b *Builder) EstimatedSize() int {
	return len(b.buf) + 4*len(b.restarts) + 4
}

// Finish returns the encoded block. The result does not alias the
// builder's internal buffers.
func (b *Builder) Finish() []byte {
	out := make([]byte, 0, b.EstimatedSize())
	out = append(out, b.buf...)
	for _, o := range b.restarts {
		out = binary.LittleEndian.AppendUint32(out, o)
	}
	return binary.LittleEndian.AppendUint32(out, uint32(len(b.restarts)))
}

// Reset clears the builder for reuse.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.restarts = b.restarts[:0]
	b.lastKey = b.lastKey[:0]
	b.counter = 0
}

func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
