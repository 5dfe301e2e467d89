package mongostore

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/types"
)

// Filter translates a query into a MongoDB filter. Values under _id are
// converted to ObjectIDs, $not becomes $nor and regular expressions become
// BSON regexes.
func Filter(q types.Query) bson.M {
	out := make(bson.M, len(q))
	for k, v := range q {
		switch k {
		case "$and", "$or":
			out[k] = filterList(v)
		case "$not":
			sub, ok := asQuery(v)
			if !ok {
				out[k] = v
				continue
			}
			out["$nor"] = bson.A{Filter(sub)}
		case types.IDField:
			out[k] = idCondition(v)
		default:
			out[k] = queryValue(v)
		}
	}
	return out
}

func filterList(v any) bson.A {
	list, _ := validation.SliceValues(v)
	out := make(bson.A, 0, len(list))
	for _, item := range list {
		if sub, ok := asQuery(item); ok {
			out = append(out, Filter(sub))
		}
	}
	return out
}

func asQuery(v any) (types.Query, bool) {
	m, ok := validation.StringMap(v)
	return types.Query(m), ok
}

// idCondition converts literal ids and the operands of $eq, $ne, $in and
// $nin to ObjectIDs
func idCondition(v any) any {
	ops, ok := validation.StringMap(v)
	if !ok {
		return toObjectID(v)
	}
	out := make(bson.M, len(ops))
	for op, operand := range ops {
		switch op {
		case "$in", "$nin":
			list, _ := validation.SliceValues(operand)
			ids := make(bson.A, len(list))
			for i, id := range list {
				ids[i] = toObjectID(id)
			}
			out[op] = ids
		case "$eq", "$ne":
			out[op] = toObjectID(operand)
		default:
			out[op] = queryValue(operand)
		}
	}
	return out
}

func queryValue(v any) any {
	switch t := v.(type) {
	case *regexp.Regexp:
		return primitive.Regex{Pattern: t.String()}
	case map[string]any:
		out := make(bson.M, len(t))
		for k, e := range t {
			out[k] = queryValue(e)
		}
		return out
	case []any:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = queryValue(e)
		}
		return out
	}
	return encodeValue(v)
}

// toObjectID parses 24-digit hex strings. Anything else is returned as is so
// collections keyed by foreign ids keep working.
func toObjectID(v any) any {
	if s, ok := v.(string); ok && primitive.IsValidObjectID(s) {
		oid, err := primitive.ObjectIDFromHex(s)
		if err == nil {
			return oid
		}
	}
	return v
}

// encodeValue prepares a record value for the driver. Named map types are
// flattened so nested records encode as sub-documents.
func encodeValue(v any) any {
	switch t := v.(type) {
	case types.Record:
		return encodeMap(t)
	case map[string]any:
		return encodeMap(t)
	case []any:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = encodeValue(e)
		}
		return out
	case time.Time:
		return primitive.NewDateTimeFromTime(t)
	}
	return v
}

func encodeMap(m map[string]any) bson.M {
	out := make(bson.M, len(m))
	for k, e := range m {
		out[k] = encodeValue(e)
	}
	return out
}

// Normalize converts a decoded document into a record made of plain Go
// values: nested documents become maps, arrays become []any, numbers become
// float64, dates become UTC time.Time and binary data becomes []byte.
// ObjectIDs are kept.
func Normalize(doc bson.M) types.Record {
	out := make(types.Record, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return map[string]any(Normalize(t))
	case map[string]any:
		return map[string]any(Normalize(bson.M(t)))
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Binary:
		return append([]byte(nil), t.Data...)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case primitive.Decimal128:
		return t.String()
	}
	return v
}
