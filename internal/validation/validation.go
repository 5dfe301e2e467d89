// Package validation holds the reflection helpers shared by the schema
// compiler, the document lifecycle and the storage engines to inspect
// dynamically typed field values.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// PrivatePrefix marks declared keys that are never compiled into a schema.
const PrivatePrefix = "_"

// IsReservedKey reports whether a declared key is private to the instance
// and therefore skipped by the schema compiler.
func IsReservedKey(key string) bool {
	return strings.HasPrefix(key, PrivatePrefix)
}

// ValidateFieldName checks that a field name can be stored and queried
func ValidateFieldName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if strings.HasPrefix(name, "$") {
		return fmt.Errorf("field name %q cannot start with '$'", name)
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("field name %q cannot contain '.'", name)
	}
	return nil
}

// IsNil reports whether v is nil or a nil pointer, map, slice or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// IsNumber reports whether v holds a Go integer or floating point value
func IsNumber(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// ToFloat converts any Go numeric value to float64.
func ToFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// IsSlice reports whether v is a slice or array other than a byte slice
func IsSlice(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// SliceValues returns the elements of any slice or array as []any.
// The returned slice is always freshly allocated.
func SliceValues(v any) ([]any, bool) {
	if !IsSlice(v) {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return append([]any{}, s...), true
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// IsEmpty reports whether a value counts as missing for required fields:
// nil, or anything that is not a number, date or boolean and has no content
// (empty string, empty slice, empty map).
func IsEmpty(v any) bool {
	if IsNil(v) {
		return true
	}
	switch v.(type) {
	case bool, time.Time:
		return false
	}
	if IsNumber(v) {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

// StringMap returns any map with string keys as map[string]any. Named map
// types are converted through reflection; the result shares values with v.
func StringMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	if IsNil(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
