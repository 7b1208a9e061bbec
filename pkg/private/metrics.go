package private

import (
	"github.com/oneconcern/privfs/pkg/metrics"
	"go.opencensus.io/stats"
)

// M describes metrics for the private package
type M struct {
	Volume struct {
		Nodes     metrics.BlockMetrics `group:"nodes" description:"metrics about encrypted nodes"`
		Chunks    metrics.BlockMetrics `group:"chunks" description:"metrics about encrypted chunks of file content"`
		Conflicts conflictMetrics      `group:"conflicts" description:"metrics about concurrent writes"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the private package"`
}

type conflictMetrics struct {
	Divergences *stats.Int64Measure `metric:"divergences" extraviews:"sum" tags:"operation" description:"number of labels with several revisions after a merge"`
	Decryption  *stats.Int64Measure `metric:"decryptionFailures" extraviews:"sum" tags:"operation" description:"number of candidate blocks that failed to decrypt"`
}

func (m *conflictMetrics) Diverged(n int, operation string) {
	metrics.Int64(m.Divergences, int64(n), map[string]string{"operation": operation})
}

func (m *conflictMetrics) Failed(operation string) {
	metrics.Inc(m.Decryption, map[string]string{"operation": operation})
}
