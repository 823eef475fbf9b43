package sstable

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/mmap"
)

// File is a read-only handle to persisted table bytes.
type File interface {
	io.ReaderAt
	io.Closer

	// Size returns the total size of the file in bytes.
	Size() int64
}

// CreateFile atomically persists data at path and opens it for reading.
// Data is written to a temporary file in the same directory, synced and
// renamed into place.
func CreateFile(path string, data []byte) (File, error) {
	tmpPath := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp", filepath.Base(path)))

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, errors.Wrap(err, "sstable: create temporary file")
	}

	if err := writeSync(f, data); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, errors.Wrap(err, "sstable: rename temporary file")
	}
	return OpenFile(path)
}

func writeSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "sstable: write file")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "sstable: sync file")
	}
	return errors.Wrap(f.Close(), "sstable: close file")
}

// OpenFile opens a persisted table file using memory-mapped I/O.
func OpenFile(path string) (File, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "sstable: open %s", path)
	}
	return &mappedFile{ReaderAt: r}, nil
}

type mappedFile struct {
	*mmap.ReaderAt
}

func (f *mappedFile) Size() int64 { return int64(f.Len()) }

// NewMemFile wraps an in-memory byte slice.
func NewMemFile(data []byte) File {
	return memFile{Reader: bytes.NewReader(data)}
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

// readRange reads exactly n bytes at off.
func readRange(f File, off, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	m, err := f.ReadAt(buf, off)
	if m == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, errors.Wrapf(err, "sstable: read %d bytes at offset %d", n, off)
}
