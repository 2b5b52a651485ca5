package schemaboi

import (
	"reflect"
	"strings"
	"sync"
)

// Go structs can be encoded directly. Fields map onto schema fields by the
// `sb` struct tag, or by the Go field name when there is no tag:
//
//	type Player struct {
//		Name  string `sb:"name"`
//		Score int    `sb:"score,omitempty"`
//		cache []byte // unexported, ignored
//		Debug bool   `sb:"-"`
//	}
//
// omitempty leaves zero values out, so they encode as absent optional fields.

type tagsCache struct {
	cmap sync.Map // reflect.Type -> []tag
}

type tag struct {
	id        int
	name      string
	omitEmpty bool
}

var structTags tagsCache

func (tc *tagsCache) Get(t reflect.Type) []tag {
	if t.Kind() != reflect.Struct {
		return nil
	}

	if m, ok := tc.cmap.Load(t); ok {
		return m.([]tag)
	}

	var m []tag
	for i := range t.NumField() {
		sf := t.Field(i)
		name, opts, _ := strings.Cut(sf.Tag.Get("sb"), ",")
		if name == "-" {
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		m = append(m, tag{id: i, name: name, omitEmpty: hasOption(opts, "omitempty")})
	}

	tc.cmap.Store(t, m)
	return m
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == want {
			return true
		}
	}
	return false
}

func indirect(rv reflect.Value) (reflect.Value, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

func isNilish(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// asObject returns v as a generic object. Go structs and maps with string keys
// are converted one level deep; their members are converted as the encoder
// reaches them.
func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case nil:
		return nil, false
	}

	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return nil, false
	}

	switch rv.Kind() {
	case reflect.Struct:
		tags := structTags.Get(rv.Type())
		obj := make(map[string]any, len(tags))
		for _, t := range tags {
			fv := rv.Field(t.id)
			if isNilish(fv) || (t.omitEmpty && fv.IsZero()) {
				continue
			}
			obj[t.name] = fv.Interface()
		}
		return obj, true
	case reflect.Map:
		return stringMap(rv)
	}
	return nil, false
}

// asStringMap is asObject without the struct conversion.
func asStringMap(v any) (map[string]any, bool) {
	if o, ok := v.(map[string]any); ok {
		return o, true
	}
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok || rv.Kind() != reflect.Map {
		return nil, false
	}
	return stringMap(rv)
}

func stringMap(rv reflect.Value) (map[string]any, bool) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	obj := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		obj[iter.Key().String()] = iter.Value().Interface()
	}
	return obj, true
}

// asList returns v as a []any. Other slice and array types are copied.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []byte, nil:
		return nil, false
	}

	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		l := make([]any, rv.Len())
		for i := range l {
			l[i] = rv.Index(i).Interface()
		}
		return l, true
	}
	return nil, false
}
