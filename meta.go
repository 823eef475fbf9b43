package sstable

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// EncodeBlockMeta appends the encoded index section to dst.
//
//	+-----------------------+-----------------+-----------------+-------+
//	| key length (varint)   |  first key      | offset (4 bytes)|  ...  |
//	+-----------------------+-----------------+-----------------+-------+
func EncodeBlockMeta(dst []byte, metas []BlockMeta) []byte {
	var tmp [binary.MaxVarintLen64]byte
	for _, m := range metas {
		n := binary.PutUvarint(tmp[:], uint64(len(m.FirstKey)))
		dst = append(dst, tmp[:n]...)
		dst = append(dst, m.FirstKey...)
		dst = binary.LittleEndian.AppendUint32(dst, m.Offset)
	}
	return dst
}

// DecodeBlockMeta decodes an index section. All of src must be consumed
// by whole entries.
func DecodeBlockMeta(src []byte) ([]BlockMeta, error) {
	var metas []BlockMeta
	for pos := 0; pos < len(src); {
		klen, n := binary.Uvarint(src[pos:])
		if n <= 0 {
			return nil, errors.Mark(errors.Newf("sstable: bad index key length at %d", pos), ErrFormat)
		}
		pos += n

		if rest := uint64(len(src) - pos); rest < 4 || rest-4 < klen {
			return nil, errors.Mark(errors.Newf("sstable: truncated index entry at %d", pos), ErrFormat)
		}

		key := make([]byte, int(klen))
		pos += copy(key, src[pos:])
		metas = append(metas, BlockMeta{
			Offset:   binary.LittleEndian.Uint32(src[pos:]),
			FirstKey: key,
		})
		pos += 4
	}
	return metas, nil
}

// validateBlockMeta checks that block offsets partition [0, indexOffset).
func validateBlockMeta(metas []BlockMeta, indexOffset uint32) error {
	if len(metas) == 0 {
		if indexOffset != 0 {
			return errors.Mark(errors.Newf("sstable: no blocks but index offset %d", indexOffset), ErrFormat)
		}
		return nil
	}

	if metas[0].Offset != 0 {
		return errors.Mark(errors.Newf("sstable: first block at offset %d", metas[0].Offset), ErrFormat)
	}
	for i, m := range metas {
		end := indexOffset
		if i+1 < len(metas) {
			end = metas[i+1].Offset
		}
		if end < m.Offset || end-m.Offset < blockTrailerLen {
			return errors.Mark(errors.Newf("sstable: bad block %d range [%d,%d)", i, m.Offset, end), ErrFormat)
		}
	}
	return nil
}
