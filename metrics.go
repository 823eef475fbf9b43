package sstable

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds prometheus collectors for table operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	BlocksWritten  prometheus.Counter
	BytesWritten   prometheus.Counter
	BlockReads     *prometheus.CounterVec
	CacheEvictions prometheus.Counter
	Corruptions    prometheus.Counter
}

// NewMetrics registers table metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BlocksWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "sstable_blocks_written_total",
			Help: "Total number of data blocks written",
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "sstable_bytes_written_total",
			Help: "Total number of table bytes persisted",
		}),
		BlockReads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sstable_block_reads_total",
			Help: "Total number of block reads by source",
		}, []string{"source"}), // cache, storage
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "sstable_block_cache_evictions_total",
			Help: "Total number of blocks evicted from the block cache",
		}),
		Corruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "sstable_corruptions_total",
			Help: "Total number of blocks which failed validation",
		}),
	}
}

func (m *Metrics) blockWritten() {
	if m != nil {
		m.BlocksWritten.Inc()
	}
}

func (m *Metrics) tableWritten(size int) {
	if m != nil {
		m.BytesWritten.Add(float64(size))
	}
}

func (m *Metrics) blockRead(source string) {
	if m != nil {
		m.BlockReads.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) cacheEvicted() {
	if m != nil {
		m.CacheEvictions.Inc()
	}
}

func (m *Metrics) corrupted() {
	if m != nil {
		m.Corruptions.Inc()
	}
}
