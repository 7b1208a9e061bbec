package metrics

import (
	"time"

	"go.opencensus.io/stats/view"
)

// Option configures the global metrics settings, see Init
type Option func(*settings)

// WithBasePath prefixes the names of all registered measures and views
func WithBasePath(location string) Option {
	return func(m *settings) {
		m.basePath = location
	}
}

// WithExporter conveys view data to some collector.
//
// Without an exporter, views still aggregate and may be read with view.RetrieveData.
func WithExporter(exporter view.Exporter) Option {
	return func(m *settings) {
		if exporter != nil {
			m.exporter = exporter
		}
	}
}

// WithReportingPeriod sets how often views are exported. Periods under a second are ignored.
func WithReportingPeriod(d time.Duration) Option {
	return func(m *settings) {
		m.d = d
	}
}
