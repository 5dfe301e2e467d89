package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/types"
)

// Entry is the compiled declaration of one field
type Entry struct {
	Key      string
	Type     Type
	Default  func() any // nil when the field has no default
	Required bool
	Unique   bool
	Indexed  bool
	Private  bool
	Min      any // float64 for Number fields, time.Time for Date fields
	Max      any
	Choices  []any
	Match    *regexp.Regexp
	Validate func(any) bool
}

// HasDefault reports whether the field declares a default value
func (e Entry) HasDefault() bool {
	return e.Default != nil
}

// Schema is the compiled, immutable field map of a class. Accessors return
// copies so callers cannot mutate shared state.
type Schema struct {
	class    string
	embedded bool
	entries  []Entry
	byKey    map[string]int

	keys              []string
	arrayKeys         []string
	refKeys           []string
	refArrayKeys      []string
	embeddedKeys      []string
	embeddedArrayKeys []string
	uniqueKeys        []string
	indexedKeys       []string
}

// IDTyper is optionally implemented by a Resolver to name the storage
// engine's native id type on the compiled _id entry.
type IDTyper interface {
	NativeIDType() string
}

// Compile builds the schema of class from its ordered declarations. Named
// class tokens are looked up through resolver. Every declaration problem is
// reported as a *ConfigError.
func Compile(class Class, decls Decls, resolver Resolver) (*Schema, error) {
	if validation.IsNil(class) {
		return nil, &ConfigError{Class: "?", Reason: "nil class"}
	}
	name := class.ClassName()
	s := &Schema{
		class:    name,
		embedded: class.IsEmbedded(),
		byKey:    make(map[string]int, len(decls)+1),
	}

	if !s.embedded {
		s.add(Entry{Key: types.IDField, Type: Type{Kind: KindNativeID, Native: resolverIDType(resolver)}})
	}

	for _, decl := range decls {
		if validation.IsReservedKey(decl.Key) {
			continue
		}
		if err := validation.ValidateFieldName(decl.Key); err != nil {
			return nil, configErrorf(name, decl.Key, "%v", err)
		}
		if _, dup := s.byKey[decl.Key]; dup {
			return nil, configErrorf(name, decl.Key, "declared more than once")
		}
		entry, err := compileEntry(name, decl, resolver)
		if err != nil {
			return nil, err
		}
		s.add(entry)
	}

	if s.embedded && (len(s.refKeys) > 0 || len(s.refArrayKeys) > 0) {
		field := append(append([]string{}, s.refKeys...), s.refArrayKeys...)[0]
		return nil, configErrorf(name, field, "embedded documents cannot hold document references")
	}
	return s, nil
}

// MustCompile is like Compile but panics on error
func MustCompile(class Class, decls Decls, resolver Resolver) *Schema {
	s, err := Compile(class, decls, resolver)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) add(e Entry) {
	s.byKey[e.Key] = len(s.entries)
	s.entries = append(s.entries, e)
	s.keys = append(s.keys, e.Key)

	t := e.Type
	if t.Kind == KindArray {
		s.arrayKeys = append(s.arrayKeys, e.Key)
		switch t.Elem.Kind {
		case KindDocumentRef:
			s.refArrayKeys = append(s.refArrayKeys, e.Key)
		case KindEmbeddedRef:
			s.embeddedArrayKeys = append(s.embeddedArrayKeys, e.Key)
		}
	}
	switch t.Kind {
	case KindDocumentRef:
		s.refKeys = append(s.refKeys, e.Key)
	case KindEmbeddedRef:
		s.embeddedKeys = append(s.embeddedKeys, e.Key)
	}
	if e.Unique {
		s.uniqueKeys = append(s.uniqueKeys, e.Key)
	}
	if e.Indexed {
		s.indexedKeys = append(s.indexedKeys, e.Key)
	}
}

func compileEntry(class string, decl Decl, resolver Resolver) (Entry, error) {
	fail := func(format string, args ...any) (Entry, error) {
		return Entry{}, configErrorf(class, decl.Key, format, args...)
	}

	opts, err := decodeOptions(decl.Spec)
	if err != nil {
		return fail("%v", err)
	}
	t, reason := classify(opts.Type, resolver)
	if reason != "" {
		return fail("%s", reason)
	}
	entry := Entry{
		Key:      decl.Key,
		Type:     t,
		Required: opts.Required,
		Unique:   opts.Unique,
		Indexed:  opts.Indexed,
		Private:  opts.Private,
		Validate: opts.Validate,
	}

	if t.Kind == KindCustom {
		if opts.ToData == nil || opts.FromData == nil || opts.Validate == nil {
			return fail("custom types require toData, fromData and validate functions")
		}
		entry.Type.Custom = &Custom{ToData: opts.ToData, FromData: opts.FromData, Validate: opts.Validate}
	} else if opts.has("toData") || opts.has("fromData") {
		return fail("toData and fromData are only allowed on custom types")
	}

	if opts.has("choices") {
		if !t.IsBasic(String) && !t.IsBasic(Number) && !t.IsBasic(Date) {
			return fail("choices are only allowed on String, Number and Date fields, not %s", t)
		}
		choices, err := normalizeChoices(t.Basic, opts.Choices)
		if err != nil {
			return fail("%v", err)
		}
		entry.Choices = choices
	}

	if opts.has("min") || opts.has("max") {
		if !t.IsBasic(Number) && !t.IsBasic(Date) {
			return fail("min and max are only allowed on Number and Date fields, not %s", t)
		}
		if entry.Min, err = normalizeBound(t.Basic, "min", opts.Min); err != nil {
			return fail("%v", err)
		}
		if entry.Max, err = normalizeBound(t.Basic, "max", opts.Max); err != nil {
			return fail("%v", err)
		}
		if entry.Min != nil && entry.Max != nil && boundAfter(entry.Min, entry.Max) {
			return fail("min is greater than max")
		}
	}

	if opts.has("match") {
		if !t.IsBasic(String) && !t.IsArrayOf(String) {
			return fail("match is only allowed on String and [String] fields, not %s", t)
		}
		switch p := opts.Match.(type) {
		case string:
			re, err := regexp.Compile(p)
			if err != nil {
				return fail("invalid match pattern: %v", err)
			}
			entry.Match = re
		case *regexp.Regexp:
			entry.Match = p
		default:
			return fail("match must be a string or *regexp.Regexp, got %T", opts.Match)
		}
	}

	if (opts.Unique || opts.Indexed) && (t.Kind == KindCustom || t.Kind == KindEmbeddedRef) {
		return fail("%s fields cannot be indexed", t)
	}

	if opts.has("default") {
		def, err := compileDefault(t, opts.Default)
		if err != nil {
			return fail("%v", err)
		}
		entry.Default = def
	}
	return entry, nil
}

func resolverIDType(r Resolver) string {
	if typer, ok := r.(IDTyper); ok {
		return typer.NativeIDType()
	}
	return ""
}

func normalizeChoices(b Basic, choices []any) ([]any, error) {
	if len(choices) == 0 {
		return nil, fmt.Errorf("choices cannot be empty")
	}
	out := make([]any, len(choices))
	for i, c := range choices {
		switch b {
		case String:
			s, ok := c.(string)
			if !ok {
				return nil, fmt.Errorf("choice %v is not a string", c)
			}
			out[i] = s
		case Number:
			f, ok := validation.ToFloat(c)
			if !ok {
				return nil, fmt.Errorf("choice %v is not a number", c)
			}
			out[i] = f
		case Date:
			d, ok := ToDate(c)
			if !ok {
				return nil, fmt.Errorf("choice %v is not a date", c)
			}
			out[i] = d
		}
	}
	return out, nil
}

func normalizeBound(b Basic, name string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b == Date {
		d, ok := ToDate(v)
		if !ok {
			return nil, fmt.Errorf("%s %v is not a date", name, v)
		}
		return d, nil
	}
	f, ok := validation.ToFloat(v)
	if !ok {
		return nil, fmt.Errorf("%s %v is not a number", name, v)
	}
	return f, nil
}

func boundAfter(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		return ta.After(b.(time.Time))
	}
	return a.(float64) > b.(float64)
}

// compileDefault turns a declared default into a factory. Function defaults
// are called on every instantiation; literals are deep copied so instances
// never share arrays or maps. Date defaults always produce a time.Time.
func compileDefault(t Type, def any) (func() any, error) {
	factory, isFunc := asFactory(def)

	if !t.IsBasic(Date) {
		if isFunc {
			return factory, nil
		}
		snapshot := types.DeepCopy(def)
		return func() any { return types.DeepCopy(snapshot) }, nil
	}

	if isFunc {
		return func() any {
			v := factory()
			if d, ok := ToDate(v); ok {
				return d
			}
			return v
		}, nil
	}
	switch def.(type) {
	case time.Time, string:
	default:
		if !validation.IsNumber(def) {
			return nil, fmt.Errorf("default %v (%T) cannot be converted to a date", def, def)
		}
	}
	d, ok := ToDate(def)
	if !ok {
		return nil, fmt.Errorf("default %v cannot be converted to a date", def)
	}
	return func() any { return d }, nil
}

// asFactory accepts any niladic function returning one value
func asFactory(def any) (func() any, bool) {
	if f, ok := def.(func() any); ok {
		return f, true
	}
	rv := reflect.ValueOf(def)
	if rv.Kind() != reflect.Func || rv.Type().NumIn() != 0 || rv.Type().NumOut() != 1 {
		return nil, false
	}
	return func() any { return rv.Call(nil)[0].Interface() }, true
}

// Class returns the name of the class the schema was compiled for
func (s *Schema) Class() string { return s.class }

// IsEmbedded reports whether the schema belongs to an embedded class
func (s *Schema) IsEmbedded() bool { return s.embedded }

// Len returns the number of entries, including _id for document classes
func (s *Schema) Len() int { return len(s.entries) }

// Entry looks up the entry for key
func (s *Schema) Entry(key string) (Entry, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Has reports whether key is declared
func (s *Schema) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// Entries returns all entries in declaration order, _id first
func (s *Schema) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// DataEntries returns every entry except the system id
func (s *Schema) DataEntries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Key != types.IDField {
			out = append(out, e)
		}
	}
	return out
}

// JSONEntries returns the entries exported by JSON serialization, which
// excludes private fields
func (s *Schema) JSONEntries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.Private {
			out = append(out, e)
		}
	}
	return out
}

// Keys returns all keys in declaration order
func (s *Schema) Keys() []string { return clone(s.keys) }

// ArrayKeys returns the keys of typed array fields
func (s *Schema) ArrayKeys() []string { return clone(s.arrayKeys) }

// RefKeys returns the keys of single document reference fields
func (s *Schema) RefKeys() []string { return clone(s.refKeys) }

// RefArrayKeys returns the keys of document reference array fields
func (s *Schema) RefArrayKeys() []string { return clone(s.refArrayKeys) }

// EmbeddedKeys returns the keys of single embedded document fields
func (s *Schema) EmbeddedKeys() []string { return clone(s.embeddedKeys) }

// EmbeddedArrayKeys returns the keys of embedded document array fields
func (s *Schema) EmbeddedArrayKeys() []string { return clone(s.embeddedArrayKeys) }

// UniqueKeys returns the keys of fields declared unique
func (s *Schema) UniqueKeys() []string { return clone(s.uniqueKeys) }

// IndexedKeys returns the keys of fields declared indexed
func (s *Schema) IndexedKeys() []string { return clone(s.indexedKeys) }

func clone(keys []string) []string {
	return append([]string(nil), keys...)
}
