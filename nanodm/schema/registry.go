package schema

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/arthur-debert/nanodm/internal/validation"
)

// classify resolves a declared type token into a descriptor. The returned
// string is a human readable reason when the token is not supported.
func classify(token any, resolver Resolver) (Type, string) {
	switch tok := token.(type) {
	case nil:
		return Type{}, "missing type"
	case Basic:
		if tok < String || tok > Date {
			return Type{}, fmt.Sprintf("unknown basic type %d", int(tok))
		}
		return Type{Kind: KindBasic, Basic: tok}, ""
	case Wildcard:
		return Type{Kind: KindCustom}, ""
	case Named:
		if resolver == nil {
			return Type{}, fmt.Sprintf("class %q cannot be resolved without a registry", string(tok))
		}
		target, ok := resolver.Resolve(string(tok))
		if !ok {
			return Type{}, fmt.Sprintf("unknown class %q", string(tok))
		}
		return refType(target), ""
	case Class:
		if validation.IsNil(tok) {
			return Type{}, "nil class"
		}
		return refType(tok), ""
	case Opts, map[string]any:
		return Type{}, "option objects are only allowed at the top level of a field"
	}

	elems, ok := validation.SliceValues(token)
	if !ok {
		return Type{}, fmt.Sprintf("unsupported type %T", token)
	}
	switch len(elems) {
	case 0:
		return Type{Kind: KindCustom}, ""
	case 1:
	default:
		return Type{}, fmt.Sprintf("typed arrays take exactly one element type, got %d", len(elems))
	}

	elem, reason := classify(elems[0], resolver)
	if reason != "" {
		return Type{}, "array element: " + reason
	}
	switch elem.Kind {
	case KindArray:
		return Type{}, "nested arrays are not supported"
	case KindCustom:
		return Type{}, "arrays of free-form elements are not supported, declare the whole field as a custom type"
	}
	return Type{Kind: KindArray, Elem: &elem}, ""
}

func refType(c Class) Type {
	if c.IsEmbedded() {
		return Type{Kind: KindEmbeddedRef, Target: c}
	}
	return Type{Kind: KindDocumentRef, Target: c}
}

// ValueMatchesType reports whether v conforms to t. Nil is always accepted;
// required-ness is checked separately. Document references accept either a
// hydrated instance of the target class or a native id recognized by ids.
func ValueMatchesType(v any, t Type, ids IDChecker) bool {
	if validation.IsNil(v) {
		return true
	}

	switch t.Kind {
	case KindBasic:
		return matchesBasic(v, t.Basic)
	case KindArray:
		elems, ok := validation.SliceValues(v)
		if !ok || t.Elem == nil {
			return false
		}
		for _, e := range elems {
			if !ValueMatchesType(e, *t.Elem, ids) {
				return false
			}
		}
		return true
	case KindDocumentRef:
		if inst, ok := v.(Instance); ok {
			return SameClass(inst.Class(), t.Target)
		}
		return ids != nil && ids.IsNativeID(v)
	case KindEmbeddedRef:
		inst, ok := v.(Instance)
		return ok && SameClass(inst.Class(), t.Target)
	case KindCustom:
		return true
	case KindNativeID:
		return ids == nil || ids.IsNativeID(v)
	}
	return false
}

func matchesBasic(v any, b Basic) bool {
	switch b {
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		f, ok := validation.ToFloat(v)
		return ok && !math.IsNaN(f)
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Binary:
		_, ok := v.([]byte)
		return ok
	case Date:
		_, ok := ToDate(v)
		return ok
	}
	return false
}

// SameClass reports whether two classes are the same registered class
func SameClass(a, b Class) bool {
	if validation.IsNil(a) || validation.IsNil(b) {
		return false
	}
	return a == b || a.ClassName() == b.ClassName()
}

// ToDate converts date-like values to time.Time: a time.Time, a number of
// unix milliseconds, or a string in any layout understood by cast.
func ToDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, true
	case string:
		if d == "" {
			return time.Time{}, false
		}
		t, err := cast.ToTimeE(d)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if f, ok := validation.ToFloat(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return time.UnixMilli(int64(f)), true
	}
	return time.Time{}, false
}

// TypeName returns the expected type name used in validation messages
func TypeName(t Type) string {
	return t.String()
}

// Describe names the runtime type of a value for validation messages
func Describe(v any) string {
	if validation.IsNil(v) {
		return "null"
	}
	if inst, ok := v.(Instance); ok {
		return "instance of " + className(inst.Class())
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []byte:
		return "binary"
	case time.Time, *time.Time:
		return "date"
	}
	if validation.IsNumber(v) {
		return "number"
	}
	if validation.IsSlice(v) {
		return "array"
	}
	if reflect.ValueOf(v).Kind() == reflect.Map {
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
