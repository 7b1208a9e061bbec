package metrics

import (
	"fmt"

	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

// LogExporter writes view data to a zap logger at debug level
type LogExporter struct {
	l *zap.Logger
}

var _ view.Exporter = &LogExporter{}

// NewLogExporter builds an exporter logging to l
func NewLogExporter(l *zap.Logger) *LogExporter {
	return &LogExporter{l: l.Named("metrics")}
}

// ExportView logs one line per row of the view
func (e *LogExporter) ExportView(d *view.Data) {
	for _, row := range d.Rows {
		fields := make([]zap.Field, 0, len(row.Tags)+2)
		fields = append(fields, zap.String("view", d.View.Name))
		for _, t := range row.Tags {
			fields = append(fields, zap.String(t.Key.Name(), t.Value))
		}
		fields = append(fields, zap.String("data", aggregate(row.Data)))
		e.l.Debug("metrics", fields...)
	}
}

func aggregate(data view.AggregationData) string {
	switch d := data.(type) {
	case *view.CountData:
		return fmt.Sprintf("count=%d", d.Value)
	case *view.SumData:
		return fmt.Sprintf("sum=%g", d.Value)
	case *view.LastValueData:
		return fmt.Sprintf("last=%g", d.Value)
	case *view.DistributionData:
		return fmt.Sprintf("count=%d min=%g max=%g mean=%g", d.Count, d.Min, d.Max, d.Mean)
	default:
		return fmt.Sprintf("%v", data)
	}
}
