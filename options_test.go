package sstable_test

import (
	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"
)

var _ = Describe("Options", func() {
	It("should parse", func() {
		o, err := sstable.ParseOptions([]byte(`
block_size: 8192
block_restart_interval: 8
compression: zstd
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(o.BlockSize).To(Equal(8192))
		Expect(o.BlockRestartInterval).To(Equal(8))
		Expect(o.Compression).To(Equal(sstable.ZstdCompression))
		Expect(o.Logger).NotTo(BeNil())
	})

	It("should apply defaults", func() {
		o, err := sstable.ParseOptions(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(o.BlockSize).To(Equal(4096))
		Expect(o.BlockRestartInterval).To(Equal(16))
		Expect(o.Compression).To(Equal(sstable.SnappyCompression))

		o, err = sstable.ParseOptions([]byte(`compression: NONE`))
		Expect(err).NotTo(HaveOccurred())
		Expect(o.Compression).To(Equal(sstable.NoCompression))
	})

	It("should reject bad input", func() {
		_, err := sstable.ParseOptions([]byte(`compression: lz4`))
		Expect(err).To(MatchError(ContainSubstring(`unknown compression "lz4"`)))

		_, err = sstable.ParseOptions([]byte(`block_size: [1]`))
		Expect(err).To(HaveOccurred())
	})

	It("should marshal compression", func() {
		data, err := yaml.Marshal(&sstable.Options{BlockSize: 512, Compression: sstable.ZstdCompression})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("block_size: 512\nblock_restart_interval: 0\ncompression: zstd\n"))

		o, err := sstable.ParseOptions(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(o.BlockSize).To(Equal(512))
		Expect(o.Compression).To(Equal(sstable.ZstdCompression))
	})
})
