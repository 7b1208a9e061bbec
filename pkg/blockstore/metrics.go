package blockstore

import (
	"github.com/oneconcern/privfs/pkg/metrics"
	"go.opencensus.io/stats"
)

// M describes metrics for the blockstore package
type M struct {
	Volume struct {
		Blocks     metrics.BlockMetrics `group:"blocks" description:"metrics about stored blocks"`
		Duplicates duplicateMetrics     `group:"duplicates" description:"metrics about deduplicated blocks"`
		Cache      cacheMetrics         `group:"cache" description:"metrics about the block cache"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the blockstore package"`
}

type duplicateMetrics struct {
	Count *stats.Int64Measure `metric:"duplicateBlocks" extraviews:"sum" tags:"kind,operation" description:"number of blocks written more than once"`
}

func (m *duplicateMetrics) Inc(operation string) {
	metrics.Inc(m.Count, map[string]string{"kind": "block", "operation": operation})
}

type cacheMetrics struct {
	Hits   *stats.Int64Measure `metric:"cacheHits" extraviews:"sum" tags:"operation"`
	Misses *stats.Int64Measure `metric:"cacheMisses" extraviews:"sum" tags:"operation"`
}

func (m *cacheMetrics) Hit(hit bool, operation string) {
	tags := map[string]string{"operation": operation}
	if hit {
		metrics.Inc(m.Hits, tags)
		return
	}
	metrics.Inc(m.Misses, tags)
}
