package store

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/types"
)

// timeLayout is fixed width so stored dates sort lexically in time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// normalizeRecord converts a record to the JSON data model the store keeps
// in memory and on disk: numbers become float64, dates UTC strings and
// binary base64 strings. Records behave the same before and after a reload.
func normalizeRecord(r types.Record) (types.Record, error) {
	out := make(types.Record, len(r))
	for k, v := range r {
		n, err := normalizeValue(v, false)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// normalizeQuery applies the record conversions to query literals so they
// compare equal to stored values. Regular expressions are kept as is.
func normalizeQuery(q types.Query) (types.Query, error) {
	out := make(types.Query, len(q))
	for k, v := range q {
		n, err := normalizeValue(v, true)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func normalizeValue(v any, query bool) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool:
		return x, nil
	case time.Time:
		return x.UTC().Format(timeLayout), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.UTC().Format(timeLayout), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case json.Number:
		return x.Float64()
	case *regexp.Regexp:
		if query {
			return x, nil
		}
	case encoding.TextMarshaler:
		text, err := x.MarshalText()
		if err != nil {
			return nil, err
		}
		return string(text), nil
	}

	if validation.IsNil(v) {
		return nil, nil
	}
	if f, ok := validation.ToFloat(v); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("unsupported number %v", f)
		}
		return f, nil
	}
	if m, ok := validation.StringMap(v); ok {
		out := make(map[string]any, len(m))
		for k, e := range m {
			n, err := normalizeValue(e, query)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}
	if elems, ok := validation.SliceValues(v); ok {
		for i, e := range elems {
			n, err := normalizeValue(e, query)
			if err != nil {
				return nil, err
			}
			elems[i] = n
		}
		return elems, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported value of type %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
