package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespaceChain = "chain"
	subsystemTree  = "tree"
)

// Metrics instruments the tree's insertion and canonicalization activity.
type Metrics struct {
	canonicalHeight  prometheus.Gauge
	finalizedHeight  prometheus.Gauge
	sideChains       prometheus.Gauge
	bufferedBlocks   prometheus.Gauge
	insertedBlocks   prometheus.Counter
	invalidBlocks    prometheus.Counter
	canonicalCommits prometheus.Counter
	reorgs           prometheus.Counter
	reorgDepth       prometheus.Histogram
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		canonicalHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "canonical_height",
			Help:      "height of the canonical chain tip",
		}),
		finalizedHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "finalized_height",
			Help:      "height of the finality boundary",
		}),
		sideChains: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "side_chains",
			Help:      "number of tracked side chains",
		}),
		bufferedBlocks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "buffered_blocks",
			Help:      "number of disconnected blocks waiting for their parent",
		}),
		insertedBlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "inserted_blocks_total",
			Help:      "number of blocks validated, executed and attached",
		}),
		invalidBlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "invalid_blocks_total",
			Help:      "number of blocks rejected as invalid",
		}),
		canonicalCommits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "canonical_commits_total",
			Help:      "number of blocks committed to the canonical chain",
		}),
		reorgs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "reorgs_total",
			Help:      "number of canonicalizations that reverted canonical blocks",
		}),
		reorgDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceChain,
			Subsystem: subsystemTree,
			Name:      "reorg_depth",
			Help:      "number of canonical blocks reverted per reorg",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

func (m *Metrics) BlockInserted() {
	m.insertedBlocks.Inc()
}

func (m *Metrics) BlockInvalid() {
	m.invalidBlocks.Inc()
}

func (m *Metrics) BlocksCommitted(count int) {
	m.canonicalCommits.Add(float64(count))
}

func (m *Metrics) Reorg(depth int) {
	m.reorgs.Inc()
	m.reorgDepth.Observe(float64(depth))
}

func (m *Metrics) CanonicalHeight(height uint64) {
	m.canonicalHeight.Set(float64(height))
}

func (m *Metrics) FinalizedHeight(height uint64) {
	m.finalizedHeight.Set(float64(height))
}

func (m *Metrics) SideChains(count int) {
	m.sideChains.Set(float64(count))
}

func (m *Metrics) BufferedBlocks(count int) {
	m.bufferedBlocks.Set(float64(count))
}
