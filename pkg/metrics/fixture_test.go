package metrics

import (
	"sync"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
)

type exampleMetrics struct {
	Telemetry struct {
		UsageCounts   []BlockMetrics        `group:"usage"`    // ignored
		FailureCounts []*stats.Int64Measure `group:"failures"` // ignored
		TestCount     *stats.Int64Measure   `metric:"testCount" description:"number of tests"`
	} `group:"telemetry"`
	Volumetry struct {
		Metadata BlockMetrics `group:"metadata"`
	} `group:"volumetry"`
	Network struct {
		Requests IOMetrics
	} `group:"network"`
}

func (e *exampleMetrics) IncTest() {
	Inc(e.Telemetry.TestCount, map[string]string{"kind": "test"})
}

// captureExporter retains exported view data in memory
type captureExporter struct {
	mx   sync.Mutex
	data map[string]*view.Data
}

func newCaptureExporter() *captureExporter {
	return &captureExporter{data: make(map[string]*view.Data)}
}

func (c *captureExporter) ExportView(d *view.Data) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.data[d.View.Name] = d
}

func (c *captureExporter) seen(name string) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	_, ok := c.data[name]
	return ok
}
