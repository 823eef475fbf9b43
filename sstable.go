package sstable

import (
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const (
	blockNoCompression     = 0
	blockSnappyCompression = 1
	blockZstdCompression   = 2

	blockTrailerLen = 1 + 8 // compression type + checksum
	footerLen       = 4     // index offset
)

// ErrNotFound is returned by the table when a key cannot be found.
var ErrNotFound = errors.New("sstable: not found")

var (
	// ErrFormat is returned when a table file is malformed or truncated.
	ErrFormat = errors.New("sstable: bad table format")
	// ErrCorruption is returned when a block fails validation.
	// Errors matching ErrCorruption also match ErrFormat.
	ErrCorruption = errors.New("sstable: block corruption")
	// ErrCapacity is returned when a single entry cannot fit into an
	// otherwise empty block or the table outgrows its addressable size.
	ErrCapacity = errors.New("sstable: block capacity exceeded")
	// ErrOrdering is returned when keys are added out of order.
	ErrOrdering = errors.New("sstable: out-of-order key")
	// ErrBuilderDone is returned when a builder is used after Build.
	ErrBuilderDone = errors.New("sstable: builder is done")
	// ErrClosed is returned when a table is used after Close.
	ErrClosed = errors.New("sstable: table is closed")
)

func markCorrupt(err error) error {
	return errors.Mark(errors.Mark(err, ErrCorruption), ErrFormat)
}

// BlockMeta describes a single data block.
type BlockMeta struct {
	Offset   uint32 // block offset position
	FirstKey []byte // first key in the block
}

// --------------------------------------------------------------------

// Compression is the compression codec
type Compression byte

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c < unknownCompression
}

// Supported compression codecs
const (
	SnappyCompression Compression = iota
	NoCompression
	ZstdCompression
	unknownCompression
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case SnappyCompression:
		return "snappy"
	case NoCompression:
		return "none"
	case ZstdCompression:
		return "zstd"
	}
	return "unknown"
}

// MarshalYAML implements yaml.Marshaler.
func (c Compression) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Compression) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	switch strings.ToLower(s) {
	case "", "snappy":
		*c = SnappyCompression
	case "none", "no":
		*c = NoCompression
	case "zstd":
		*c = ZstdCompression
	default:
		return errors.Newf("sstable: unknown compression %q", s)
	}
	return nil
}
