package metrics

import (
	"fmt"
	"path"
	"reflect"

	"go.opencensus.io/stats"
)

// measureSpec is decoded from the struct tags of a measure field:
//   - metric: the metric name (required to declare a measure)
//   - group: an extra path element for nested structs
//   - unit: count (default), bytes, sumbytes, milliseconds
//   - description: a description for the measure and its views
//   - extraviews: comma separated list of sum, count, lastvalue
//   - tags: comma separated list of tag keys captured by views
type measureSpec struct {
	unit        string
	description string
	extraViews  []string
	tags        []string
}

type registerFunc func(field interface{}, name string, spec measureSpec) stats.Measure

var (
	int64MeasureType   = reflect.TypeOf((*stats.Int64Measure)(nil))
	float64MeasureType = reflect.TypeOf((*stats.Float64Measure)(nil))
)

// walkMeasures allocates all tagged measure fields found in the struct pointed to by m
func walkMeasures(parent string, m interface{}, register registerFunc) {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("metrics must be declared with a pointer to a struct, got: %T", m))
	}
	walkStruct(parent, rv.Elem(), register)
}

func walkStruct(parent string, sv reflect.Value, register registerFunc) {
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		fv := sv.Field(i)
		if !fv.CanSet() {
			continue
		}
		group := field.Tag.Get("group")

		switch {
		case fv.Kind() == reflect.Struct:
			walkStruct(path.Join(parent, group), fv, register)

		case fv.Type() == int64MeasureType || fv.Type() == float64MeasureType:
			metric, ok := field.Tag.Lookup("metric")
			if !ok || !fv.IsNil() {
				continue
			}
			spec := measureSpec{
				unit:        field.Tag.Get("unit"),
				description: field.Tag.Get("description"),
				extraViews:  splitList(field.Tag.Get("extraviews")),
				tags:        splitList(field.Tag.Get("tags")),
			}
			measure := register(fv.Addr().Interface(), path.Join(parent, group, metric), spec)
			if measure != nil {
				fv.Set(reflect.ValueOf(measure))
			}
		}
	}
}

func sameType(a, b interface{}) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}
