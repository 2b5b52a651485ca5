package schemaboi

import (
	"bytes"
	"maps"
	"math"
	"math/big"
	"reflect"
)

// types for representing decoded data

// MapEntry is one key/value pair of a map decoded in MapEntries form.
type MapEntry struct {
	Key   any
	Value any
}

// asUint64 accepts any Go integer, an integral float or a *big.Int.
func asUint64(v any) (uint64, bool) {
	if n, ok := v.(*big.Int); ok {
		return n.Uint64(), n.IsUint64()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		return uint64(i), i >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f < 0 || f >= math.MaxUint64 || f != math.Trunc(f) {
			return 0, false
		}
		return uint64(f), true
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	if n, ok := v.(*big.Int); ok {
		return n.Int64(), n.IsInt64()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		return int64(u), u <= math.MaxInt64
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f < math.MinInt64 || f >= math.MaxInt64 || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func asBigInt(v any) (*big.Int, bool) {
	if n, ok := v.(*big.Int); ok {
		return n, n != nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return nil, false
		}
		n, _ := big.NewFloat(f).Int(nil)
		return n, true
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	}
	return 0, false
}

// valuesEqual compares an application value with a field default. Numbers
// compare by value whatever their Go type.
func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case bool, string:
		return a == b
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	if ai, ok := asBigInt(a); ok {
		bi, ok := asBigInt(b)
		return ok && ai.Cmp(bi) == 0
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

// cloneValue deep copies a decoded value so defaults taken from a schema are
// never shared between results.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(x))
		for k, e := range x {
			c[k] = cloneValue(e)
		}
		return c
	case []any:
		c := make([]any, len(x))
		for i, e := range x {
			c[i] = cloneValue(e)
		}
		return c
	case []MapEntry:
		c := make([]MapEntry, len(x))
		for i, e := range x {
			c[i] = MapEntry{Key: cloneValue(e.Key), Value: cloneValue(e.Value)}
		}
		return c
	case [][2]any:
		c := make([][2]any, len(x))
		for i, e := range x {
			c[i] = [2]any{cloneValue(e[0]), cloneValue(e[1])}
		}
		return c
	case []byte:
		return bytes.Clone(x)
	case *big.Int:
		return new(big.Int).Set(x)
	}
	return v
}

// foreignBag returns obj's "_foreign" map, creating it when create is set.
func foreignBag(obj map[string]any, create bool) map[string]any {
	if bag, ok := obj[ForeignKey].(map[string]any); ok {
		return bag
	}
	if !create {
		return nil
	}
	bag := make(map[string]any)
	obj[ForeignKey] = bag
	return bag
}

// CopyForeign copies the foreign fields of a decoded object src into dst,
// keeping any dst already has. Use it to carry data the application does not
// understand from a value it read into the value it writes back.
func CopyForeign(dst, src map[string]any) {
	bag := foreignBag(src, false)
	if len(bag) == 0 {
		return
	}
	out := foreignBag(dst, true)
	for k, v := range maps.All(bag) {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
}
