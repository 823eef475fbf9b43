package sstable

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Options define builder and table specific options.
type Options struct {
	// BlockSize is the maximum uncompressed size in bytes of each table block.
	// Default: 4KiB.
	BlockSize int `yaml:"block_size"`

	// BlockRestartInterval is the number of keys between restart points
	// for prefix compression of keys.
	//
	// Default: 16.
	BlockRestartInterval int `yaml:"block_restart_interval"`

	// The compression codec to use.
	// Default: SnappyCompression.
	Compression Compression `yaml:"compression"`

	// Logger receives debug records about built and opened tables.
	// Default: slog.Default().
	Logger *slog.Logger `yaml:"-"`

	// Metrics, if set, collects block read/write statistics.
	Metrics *Metrics `yaml:"-"`
}

// ParseOptions parses YAML encoded options.
func ParseOptions(data []byte) (*Options, error) {
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, errors.Wrap(err, "sstable: parse options")
	}
	return o.norm(), nil
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = 1 << 12
	}
	if oo.BlockRestartInterval < 1 {
		oo.BlockRestartInterval = 16
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}
	if oo.Logger == nil {
		oo.Logger = slog.Default()
	}

	return &oo
}
