package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/shard"
)

const namespace = "symindex"

// MergeCollector is a shard.MergeObserver that records merge progress as
// Prometheus metrics.
type MergeCollector struct {
	shardsTotal   *prometheus.CounterVec
	symbolsTotal  *prometheus.CounterVec
	mergeDuration prometheus.Histogram
	mergedSymbols prometheus.Gauge
	mergedRefs    prometheus.Gauge
	lastMergeTime prometheus.Gauge
}

// NewMergeCollector registers the merge metrics with reg.
func NewMergeCollector(reg prometheus.Registerer) *MergeCollector {
	f := promauto.With(reg)
	return &MergeCollector{
		// Labels: status (loaded, failed)
		shardsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "shards_total",
			Help:      "Shard files processed by status",
		}, []string{"status"}),

		// Labels: result (added, duplicate)
		symbolsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "symbols_total",
			Help:      "Symbols folded into the merge result by outcome",
		}, []string{"result"}),

		mergeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Wall time of complete merges",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		mergedSymbols: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "result_symbols",
			Help:      "Symbols in the most recent merge result",
		}),

		mergedRefs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "result_refs",
			Help:      "References in the most recent merge result",
		}),

		lastMergeTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time the most recent merge completed",
		}),
	}
}

// ShardLoaded implements shard.MergeObserver.
func (c *MergeCollector) ShardLoaded(path string, symbols, refs int) {
	c.shardsTotal.WithLabelValues("loaded").Inc()
}

// ShardFailed implements shard.MergeObserver.
func (c *MergeCollector) ShardFailed(path string, err error) {
	c.shardsTotal.WithLabelValues("failed").Inc()
}

// SymbolsFolded implements shard.MergeObserver.
func (c *MergeCollector) SymbolsFolded(added, duplicates int) {
	c.symbolsTotal.WithLabelValues("added").Add(float64(added))
	c.symbolsTotal.WithLabelValues("duplicate").Add(float64(duplicates))
}

// MergeFinished implements shard.MergeObserver.
func (c *MergeCollector) MergeFinished(elapsed time.Duration, symbols, refs int) {
	c.mergeDuration.Observe(elapsed.Seconds())
	c.mergedSymbols.Set(float64(symbols))
	c.mergedRefs.Set(float64(refs))
	c.lastMergeTime.SetToCurrentTime()
}

var _ shard.MergeObserver = (*MergeCollector)(nil)

// RegisterIndexGauges exposes the installed generation of idx through
// gauges that are read at scrape time.
func RegisterIndexGauges(reg prometheus.Registerer, idx *index.MemIndex) {
	f := promauto.With(reg)
	gauge := func(name, help string, value func(g *index.Generation) float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return value(idx.Snapshot())
		})
	}

	gauge("symbols", "Unique symbols in the installed generation",
		func(g *index.Generation) float64 { return float64(g.SymbolCount()) })
	gauge("refs", "Unique references in the installed generation",
		func(g *index.Generation) float64 { return float64(g.RefCount()) })
	gauge("memory_bytes", "Estimated memory held by the installed generation",
		func(g *index.Generation) float64 { return float64(g.EstimateMemoryUsage()) })
	gauge("generation", "Aggregator version of the installed generation",
		func(g *index.Generation) float64 { return float64(g.Version()) })

	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "builds_total",
		Help:      "Generations installed since start",
	}, func() float64 {
		return float64(idx.Builds())
	})
}

// WatchCollector records the batches a shard watcher applies. BatchApplied
// matches the watcher's batch callback.
type WatchCollector struct {
	batchesTotal  prometheus.Counter
	eventsTotal   prometheus.Counter
	batchDuration prometheus.Histogram
}

// NewWatchCollector registers the watch metrics with reg.
func NewWatchCollector(reg prometheus.Registerer) *WatchCollector {
	f := promauto.With(reg)
	return &WatchCollector{
		batchesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "batches_total",
			Help:      "Debounced event batches applied to the index",
		}),
		eventsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "events_total",
			Help:      "Shard file events applied to the index",
		}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "batch_duration_seconds",
			Help:      "Time spent applying one batch, rebuilds included",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

// BatchApplied records one applied batch of count events.
func (c *WatchCollector) BatchApplied(count int, elapsed time.Duration) {
	c.batchesTotal.Inc()
	c.eventsTotal.Add(float64(count))
	c.batchDuration.Observe(elapsed.Seconds())
}
