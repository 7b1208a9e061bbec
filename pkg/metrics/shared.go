package metrics

import (
	"time"

	"go.opencensus.io/stats"
)

func kindTags(kind, key, value string) map[string]string {
	return map[string]string{"kind": kind, key: value}
}

// BlockMetrics counts content-addressed blocks and their sizes
type BlockMetrics struct {
	BlockCount *stats.Int64Measure `metric:"blockCount" description:"number of blocks" extraviews:"sum" tags:"kind,operation"`
	BlockSize  *stats.Int64Measure `metric:"blockSize" unit:"bytes" description:"size of blocks" extraviews:"sum" tags:"kind,operation"`
}

// Inc counts one block
func (b *BlockMetrics) Inc(operation string) {
	Inc(b.BlockCount, kindTags("block", "operation", operation))
}

// Size records the size of a block
func (b *BlockMetrics) Size(size int64, operation string) {
	Int64(b.BlockSize, size, kindTags("block", "operation", operation))
}

// IOMetrics reports about backend reads and writes
type IOMetrics struct {
	Count        *stats.Int64Measure   `metric:"ioCount" description:"number of IO requests" tags:"kind,operation"`
	Timing       *stats.Float64Measure `metric:"timing" unit:"milliseconds" description:"response time in milliseconds" tags:"kind,operation"`
	Failures     *stats.Int64Measure   `metric:"ioFailures" description:"number of failed IOs" tags:"kind,operation"`
	IOSize       *stats.Int64Measure   `metric:"ioSize" unit:"bytes" description:"bytes transferred by an IO" extraviews:"sum" tags:"kind,operation"`
	IOThroughput *stats.Float64Measure `metric:"throughput" unit:"bytespersec" description:"throughput of a single IO in bytes per second" tags:"kind,operation"`
}

// Size records the number of bytes moved by an IO. Zero is not recorded.
func (n *IOMetrics) Size(size int64, operation string) {
	if size == 0 {
		return
	}
	Int64(n.IOSize, size, kindTags("io", "operation", operation))
}

// Failed counts a failed IO
func (n *IOMetrics) Failed(operation string) {
	Inc(n.Failures, kindTags("io", "operation", operation))
}

// Throughput records the rate of a non-empty IO which took some time
func (n *IOMetrics) Throughput(start, end time.Time, size int64, operation string) {
	elapsed := end.Sub(start)
	if size == 0 || elapsed <= 0 {
		return
	}
	Float64(n.IOThroughput, float64(size)/elapsed.Seconds(), kindTags("io", "operation", operation))
}

// IORecord starts timing an IO. The returned func completes the record with the
// bytes transferred and the outcome:
//
//	defer func(start time.Time) {
//		m.IORecord(start, "get")(size, err)
//	}(time.Now())
func (n *IOMetrics) IORecord(start time.Time, operation string) func(int64, error) {
	return func(size int64, err error) {
		now := time.Now()
		tags := kindTags("io", "operation", operation)
		Duration(start, now, n.Timing, tags)
		Inc(n.Count, tags)
		n.Size(size, operation)
		if err != nil {
			Inc(n.Failures, tags)
			return
		}
		n.Throughput(start, now, size, operation)
	}
}

// UsageMetrics reports about calls to the entry points of a component
type UsageMetrics struct {
	Count    *stats.Int64Measure   `metric:"usageCount" description:"number of calls" tags:"kind,method"`
	Failures *stats.Int64Measure   `metric:"usageFailures" description:"number of failed calls" tags:"kind,method"`
	Timing   *stats.Float64Measure `metric:"timing" unit:"milliseconds" description:"duration of a call" tags:"kind,method"`
}

// Used records a call and its duration
func (u *UsageMetrics) Used(start time.Time, method string) {
	tags := kindTags("usage", "method", method)
	Since(start, u.Timing, tags)
	Inc(u.Count, tags)
}

// UsedAll is Used, with failures reported from a deferred error:
//
//	defer func(start time.Time) {
//		m.UsedAll(start, "Put")(err)
//	}(time.Now())
func (u *UsageMetrics) UsedAll(start time.Time, method string) func(error) {
	return func(err error) {
		u.Used(start, method)
		if err != nil {
			u.Failed(method)
		}
	}
}

// Failed counts a failed call
func (u *UsageMetrics) Failed(method string) {
	Inc(u.Failures, kindTags("usage", "method", method))
}
