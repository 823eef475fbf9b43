package sstable

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var zstdCodec struct {
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

func zstdInit() error {
	zstdCodec.once.Do(func() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			zstdCodec.err = errors.Wrap(err, "sstable: create zstd encoder")
			return
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			zstdCodec.err = errors.Wrap(err, "sstable: create zstd decoder")
			return
		}
		zstdCodec.enc, zstdCodec.dec = enc, dec
	})
	return zstdCodec.err
}

// appendFrame compresses a raw block, appends it to dst together with the
// compression type and a checksum. The compressed form is only kept if it
// saves at least a quarter of the space. Scratch is a reusable buffer.
func appendFrame(dst, raw, scratch []byte, c Compression) ([]byte, []byte, error) {
	var (
		payload = raw
		ctype   = byte(blockNoCompression)
	)

	switch c {
	case SnappyCompression:
		scratch = snappy.Encode(scratch[:cap(scratch)], raw)
		if len(scratch) < len(raw)-len(raw)/4 {
			payload, ctype = scratch, blockSnappyCompression
		}
	case ZstdCompression:
		if err := zstdInit(); err != nil {
			return dst, scratch, err
		}
		scratch = zstdCodec.enc.EncodeAll(raw, scratch[:0])
		if len(scratch) < len(raw)-len(raw)/4 {
			payload, ctype = scratch, blockZstdCompression
		}
	}

	start := len(dst)
	dst = append(dst, payload...)
	dst = append(dst, ctype)
	dst = binary.LittleEndian.AppendUint64(dst, xxhash.Sum64(dst[start:]))
	return dst, scratch, nil
}

// decodeFrame verifies and decompresses a framed block.
func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < blockTrailerLen {
		return nil, markCorrupt(errors.Newf("sstable: frame too small, %d bytes", len(frame)))
	}

	body := frame[:len(frame)-8]
	if want, got := binary.LittleEndian.Uint64(frame[len(body):]), xxhash.Sum64(body); want != got {
		return nil, markCorrupt(errors.Newf("sstable: checksum mismatch, %x != %x", got, want))
	}

	payload := body[:len(body)-1]
	switch ctype := body[len(body)-1]; ctype {
	case blockNoCompression:
		return payload, nil
	case blockSnappyCompression:
		plain, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, markCorrupt(errors.Wrap(err, "sstable: snappy decode"))
		}
		return plain, nil
	case blockZstdCompression:
		if err := zstdInit(); err != nil {
			return nil, err
		}
		plain, err := zstdCodec.dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, markCorrupt(errors.Wrap(err, "sstable: zstd decode"))
		}
		return plain, nil
	default:
		return nil, markCorrupt(errors.Newf("sstable: bad compression codec %d", ctype))
	}
}
