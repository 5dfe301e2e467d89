package types

import (
	"reflect"
	"time"
)

// DeepCopy returns a copy of v in which every map and slice is freshly
// allocated, so mutating the copy never affects the original. Scalars,
// time.Time values and values of other kinds (pointers, funcs, structs) are
// returned as is.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = DeepCopy(e)
		}
		return out
	case Record:
		return Record(DeepCopy(map[string]any(t)).(map[string]any))
	case Query:
		return Query(DeepCopy(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = DeepCopy(e)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	case string, bool, float64, int, int64, time.Time:
		return t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e := DeepCopy(rv.Index(i).Interface())
			if e == nil {
				continue
			}
			out.Index(i).Set(reflect.ValueOf(e))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e := DeepCopy(iter.Value().Interface())
			if e == nil {
				out.SetMapIndex(iter.Key(), reflect.Zero(rv.Type().Elem()))
				continue
			}
			out.SetMapIndex(iter.Key(), reflect.ValueOf(e))
		}
		return out.Interface()
	default:
		return v
	}
}

// CopyRecord returns a deep copy of r.
func CopyRecord(r Record) Record {
	if r == nil {
		return nil
	}
	return DeepCopy(r).(Record)
}
