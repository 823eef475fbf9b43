package sstable_test

import (
	"os"
	"path/filepath"

	"github.com/bsm/sstable"
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Table", func() {
	var subject *sstable.Table

	// B0: a, b, c
	// B1: e, f, g
	BeforeEach(func() {
		var err error
		subject, err = boundaryTable(nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(subject.Close()).To(Succeed())
	})

	It("should init", func() {
		Expect(subject.ID()).To(Equal(uint64(7)))
		Expect(subject.NumBlocks()).To(Equal(2))
		Expect(subject.FirstKey()).To(Equal([]byte("a")))
		Expect(subject.LastKey()).To(Equal([]byte("g")))

		t10k, err := seedTable(10000, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(t10k.NumBlocks()).To(BeNumerically(">", 300))
		Expect(t10k.FirstKey()).To(Equal(seedKey(0)))
		Expect(t10k.LastKey()).To(Equal(seedKey(9999)))
	})

	It("should Get/Append", func() {
		for _, c := range "abcefg" {
			Expect(subject.Get([]byte{byte(c)})).To(Equal([]byte{byte(c) - 32}), "for %c", c)
		}
		Expect(subject.Append([]byte("x"), []byte("e"))).To(Equal([]byte("xE")))

		for _, c := range "0dhz" {
			_, err := subject.Get([]byte{byte(c)})
			Expect(err).To(MatchError(sstable.ErrNotFound), "for %c", c)
		}
	})

	It("should find blocks", func() {
		Expect(subject.FindBlockIdx([]byte("0"))).To(Equal(0))
		Expect(subject.FindBlockIdx([]byte("a"))).To(Equal(0))
		Expect(subject.FindBlockIdx([]byte("c"))).To(Equal(0))
		Expect(subject.FindBlockIdx([]byte("d"))).To(Equal(0))
		Expect(subject.FindBlockIdx([]byte("e"))).To(Equal(1))
		Expect(subject.FindBlockIdx([]byte("ea"))).To(Equal(1))
		Expect(subject.FindBlockIdx([]byte("z"))).To(Equal(1))
	})

	It("should read blocks", func() {
		blk, err := subject.ReadBlock(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(blk.Size()).To(Equal(23))

		iter := blk.Iter()
		iter.SeekToFirst()
		Expect(iter.Key()).To(Equal([]byte("e")))

		_, err = subject.ReadBlock(2)
		Expect(err).To(MatchError(`sstable: block 2 out of range [0,2)`))
		_, err = subject.ReadBlock(-1)
		Expect(err).To(HaveOccurred())
	})

	It("should read blocks through the cache", func() {
		cache := sstable.NewBlockCache(0, nil)
		cached, err := boundaryTable(cache)
		Expect(err).NotTo(HaveOccurred())
		defer cached.Close()

		b1, err := cached.ReadBlockCached(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(cache.Stats()).To(Equal(sstable.CacheStats{Misses: 1}))
		Expect(cache.Len()).To(Equal(1))

		b2, err := cached.ReadBlockCached(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(b2).To(BeIdenticalTo(b1))
		Expect(cache.Stats()).To(Equal(sstable.CacheStats{Hits: 1, Misses: 1}))

		fresh, err := cached.ReadBlock(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(fresh.Bytes()).To(Equal(b2.Bytes()))

		Expect(cached.Close()).To(Succeed())
		Expect(cache.Len()).To(Equal(0))
	})

	It("should close", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Close()).To(Succeed())

		_, err := subject.ReadBlock(0)
		Expect(err).To(MatchError(sstable.ErrClosed))
		_, err = subject.Seek([]byte("a"))
		Expect(err).To(MatchError(sstable.ErrClosed))
	})

	Describe("Open", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "sstable-table-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(os.RemoveAll(dir)).To(Succeed())
		})

		persist := func() []byte {
			b, err := boundaryBuilder()
			Expect(err).NotTo(HaveOccurred())

			path := filepath.Join(dir, "boundary.sst")
			tbl, err := b.Build(7, nil, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(tbl.Close()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			return data
		}

		It("should open files", func() {
			persist()

			file, err := sstable.OpenFile(filepath.Join(dir, "boundary.sst"))
			Expect(err).NotTo(HaveOccurred())

			tbl, err := sstable.Open(7, nil, file, nil)
			Expect(err).NotTo(HaveOccurred())
			defer tbl.Close()

			Expect(tbl.NumBlocks()).To(Equal(2))
			Expect(tbl.BlockMeta(1)).To(Equal(sstable.BlockMeta{Offset: 32, FirstKey: []byte("e")}))
			Expect(scanKeys(tbl)).To(Equal([]string{"a", "b", "c", "e", "f", "g"}))
		})

		It("should open empty tables", func() {
			tbl, err := sstable.Open(1, nil, sstable.NewMemFile([]byte{0, 0, 0, 0}), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(tbl.NumBlocks()).To(Equal(0))
			Expect(tbl.FirstKey()).To(BeNil())
			Expect(tbl.LastKey()).To(BeNil())
		})

		It("should reject malformed files", func() {
			for _, data := range [][]byte{
				{1, 2},                                  // no footer
				{9, 0, 0, 0},                            // index offset beyond footer
				{5, 'a', 0, 0, 0, 0},                    // truncated index entry
				{1, 'a', 0, 0, 0, 0, 0, 0, 0, 0},        // block without data
				{1, 'a', 0, 0, 0, 0, 2, 0, 0, 0},        // misaligned index offset
				{0, 0, 0, 0, 0, 0, 0, 0, 0, 9, 0, 0, 0}, // data without index
			} {
				_, err := sstable.Open(1, nil, sstable.NewMemFile(data), nil)
				Expect(errors.Is(err, sstable.ErrFormat)).To(BeTrue(), "for %v: %v", data, err)
				Expect(errors.Is(err, sstable.ErrCorruption)).To(BeFalse(), "for %v", data)
			}
		})

		It("should detect corrupt blocks", func() {
			data := persist()
			data[3] ^= 0xff // first key of the first block

			tbl, err := sstable.Open(7, nil, sstable.NewMemFile(data), nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = tbl.ReadBlock(0)
			Expect(errors.Is(err, sstable.ErrCorruption)).To(BeTrue())
			Expect(errors.Is(err, sstable.ErrFormat)).To(BeTrue())

			_, err = tbl.ReadBlock(1)
			Expect(err).NotTo(HaveOccurred())

			_, err = tbl.SeekToFirst()
			Expect(errors.Is(err, sstable.ErrCorruption)).To(BeTrue())

			iter, err := tbl.Seek([]byte("e"))
			Expect(err).NotTo(HaveOccurred())
			Expect(iter.Key()).To(Equal([]byte("e")))
		})

		It("should fail on missing files", func() {
			_, err := sstable.OpenFile(filepath.Join(dir, "missing.sst"))
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})
	})
})
