package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogExporter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	exporter := NewLogExporter(zap.New(core))

	kind := tag.MustNewKey("kind")
	exporter.ExportView(&view.Data{
		View: &view.View{Name: "blockstore/volumetry/blocks/blockCount"},
		Rows: []*view.Row{
			{Tags: []tag.Tag{{Key: kind, Value: "block"}}, Data: &view.CountData{Value: 3}},
			{Data: &view.SumData{Value: 1.5}},
			{Data: &view.LastValueData{Value: 2}},
			{Data: &view.DistributionData{Count: 2, Min: 1, Max: 3, Mean: 2}},
		},
	})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "metrics", entries[0].LoggerName)
	first := entries[0].ContextMap()
	assert.Equal(t, "blockstore/volumetry/blocks/blockCount", first["view"])
	assert.Equal(t, "block", first["kind"])
	assert.Equal(t, "count=3", first["data"])
	assert.Equal(t, "sum=1.5", entries[1].ContextMap()["data"])
	assert.Equal(t, "last=2", entries[2].ContextMap()["data"])
	assert.Equal(t, "count=2 min=1 max=3 mean=2", entries[3].ContextMap()["data"])
}
