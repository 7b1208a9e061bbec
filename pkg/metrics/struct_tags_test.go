package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats"
)

func TestStructTags(t *testing.T) {
	s := newSettings()
	m := &exampleMetrics{}

	walkMeasures("parent", m, s.register)

	assert.Nil(t, m.Telemetry.UsageCounts)   // ignored slice
	assert.Nil(t, m.Telemetry.FailureCounts) // ignored slice

	assert.NotNil(t, m.Telemetry.TestCount)
	assert.Equal(t, "parent/telemetry/testCount", m.Telemetry.TestCount.Name())
	assert.NotNil(t, m.Volumetry.Metadata.BlockCount)
	assert.NotNil(t, m.Volumetry.Metadata.BlockSize)
	assert.Equal(t, "parent/volumetry/metadata/blockSize", m.Volumetry.Metadata.BlockSize.Name())
	assert.NotNil(t, m.Network.Requests.Count)
	assert.NotNil(t, m.Network.Requests.Timing)
	assert.NotNil(t, m.Network.Requests.Failures)
	assert.NotNil(t, m.Network.Requests.IOSize)

	require.NotNil(t, m.Network.Requests.IOThroughput)
	assert.IsType(t, &stats.Float64Measure{}, m.Network.Requests.IOThroughput)
	assert.Len(t, s.measures, 8)
	assert.Len(t, s.views, 11)
}

func TestStructTagsRejectsNonStruct(t *testing.T) {
	s := newSettings()
	var notAStruct int

	assert.Panics(t, func() { walkMeasures("parent", &notAStruct, s.register) })
	assert.Panics(t, func() { walkMeasures("parent", exampleMetrics{}, s.register) })
}
