package metrics

import (
	"path"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	unitCount    = "count"
	unitBytes    = "bytes"
	unitSumBytes = "sumbytes"
	unitMillis   = "milliseconds"
	unitRate     = "bytespersec"
)

var (
	mp       *settings
	initOnce sync.Once
)

// current returns the global settings, initializing defaults on first use
func current() *settings {
	Init()
	return mp
}

type settings struct {
	basePath string
	exporter view.Exporter
	d        time.Duration

	mx       sync.Mutex
	modules  map[string]interface{}
	measures []stats.Measure
	views    []*view.View
}

func newSettings(opts ...Option) *settings {
	s := &settings{
		modules: make(map[string]interface{}),
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.exporter != nil {
		view.RegisterExporter(s.exporter)
		if s.d >= time.Second {
			view.SetReportingPeriod(s.d)
		}
	}
	return s
}

func (s *settings) EnsureMetrics(location string, m interface{}) interface{} {
	s.mx.Lock()
	defer s.mx.Unlock()
	location = path.Join(s.basePath, location)

	if existing, ok := s.modules[location]; ok {
		if !sameType(existing, m) {
			panic("metrics module " + location + " is already registered with a different type")
		}
		return existing
	}
	walkMeasures(location, m, s.register)
	s.modules[location] = m
	return m
}

// Flush exports the current data of all registered views
func (s *settings) Flush() {
	if s.exporter == nil {
		return
	}
	s.mx.Lock()
	views := append([]*view.View(nil), s.views...)
	s.mx.Unlock()

	now := time.Now()
	for _, v := range views {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			continue
		}
		s.exporter.ExportView(&view.Data{View: v, Start: now, End: now, Rows: rows})
	}
}

// register creates the measure for a tagged field and its views.
//
// Every measure gets a default view according to its unit; the "extraviews" tag
// adds sum, count or lastvalue views.
func (s *settings) register(field interface{}, name string, spec measureSpec) stats.Measure {
	description := spec.description
	if description == "" {
		description = name
	}
	unit, aggregation := unitAggregation(spec.unit)

	var measure stats.Measure
	switch field.(type) {
	case **stats.Int64Measure:
		measure = stats.Int64(name, description, unit)
	case **stats.Float64Measure:
		measure = stats.Float64(name, description, unit)
	default:
		return nil
	}
	s.measures = append(s.measures, measure)

	keys := make([]tag.Key, 0, len(spec.tags))
	for _, k := range spec.tags {
		keys = append(keys, tag.MustNewKey(k))
	}

	s.addView(&view.View{
		Name:        name,
		Description: description,
		Measure:     measure,
		Aggregation: aggregation,
		TagKeys:     keys,
	})

	for _, extra := range spec.extraViews {
		var agg *view.Aggregation
		switch extra {
		case "sum":
			agg = view.Sum()
		case unitCount:
			agg = view.Count()
		case "lastvalue":
			agg = view.LastValue()
		default:
			continue
		}
		s.addView(&view.View{
			Name:        name + "/" + extra,
			Description: description + " [" + extra + "]",
			Measure:     measure,
			Aggregation: agg,
			TagKeys:     keys,
		})
	}
	return measure
}

func (s *settings) addView(v *view.View) {
	s.views = append(s.views, v)
	_ = view.Register(v)
}

func unitAggregation(unit string) (string, *view.Aggregation) {
	switch unit {
	case unitMillis:
		return stats.UnitMilliseconds, view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000, 10000)
	case unitBytes:
		return stats.UnitBytes, view.Distribution(
			256, 1*units.KiB, 4*units.KiB, 16*units.KiB, 64*units.KiB,
			256*units.KiB, 1*units.MiB, 4*units.MiB, 16*units.MiB,
		)
	case unitSumBytes:
		return stats.UnitBytes, view.Sum()
	case unitRate:
		return "By/s", view.Distribution(
			64*units.KiB, 256*units.KiB, 1*units.MiB, 4*units.MiB, 16*units.MiB, 64*units.MiB, 256*units.MiB,
		)
	default:
		return stats.UnitDimensionless, view.Count()
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
