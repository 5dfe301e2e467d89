// Package schema turns declarative field maps into compiled, immutable
// schemas and decides whether runtime values conform to them.
//
// A declaration is an ordered list of Decl values. Each Decl names a field and
// carries either a bare type token or an Opts map with a "type" key plus
// modifiers:
//
//	schema.Decls{
//		{Key: "name", Spec: schema.String},
//		{Key: "age", Spec: schema.Opts{"type": schema.Number, "min": 0, "max": 120}},
//		{Key: "tags", Spec: []any{schema.String}},
//		{Key: "author", Spec: userModel},
//	}
//
// Type tokens are the Basic constants, the Object and Array wildcard markers
// (custom types with explicit marshalling), a one element []any for typed
// arrays, any Class (document or embedded reference), or Named for a class
// resolved lazily by name.
package schema

import "fmt"

// Kind is the structural category of a field type
type Kind int

const (
	// KindBasic is a primitive value: String, Number, Boolean, Binary or Date
	KindBasic Kind = iota
	// KindDocumentRef references another top level document by id
	KindDocumentRef
	// KindEmbeddedRef holds an embedded document owned by its container
	KindEmbeddedRef
	// KindArray is a typed array of any non array kind
	KindArray
	// KindCustom is an arbitrary value with user supplied marshalling
	KindCustom
	// KindNativeID is the storage engine's identifier type
	KindNativeID
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindDocumentRef:
		return "document-ref"
	case KindEmbeddedRef:
		return "embedded-ref"
	case KindArray:
		return "array"
	case KindCustom:
		return "custom"
	case KindNativeID:
		return "native-id"
	default:
		return "unknown"
	}
}

// Basic enumerates the primitive value types
type Basic int

const (
	String Basic = iota + 1
	Number
	Boolean
	Binary
	Date
)

// String returns the declared name of the basic type
func (b Basic) String() string {
	switch b {
	case String:
		return "String"
	case Number:
		return "Number"
	case Boolean:
		return "Boolean"
	case Binary:
		return "Binary"
	case Date:
		return "Date"
	default:
		return fmt.Sprintf("Basic(%d)", int(b))
	}
}

// Wildcard marks free-form fields. Both markers compile to a custom type
// and therefore require toData, fromData and validate functions.
type Wildcard int

const (
	Object Wildcard = iota + 1
	Array
)

// String returns the marker name
func (w Wildcard) String() string {
	if w == Array {
		return "Array"
	}
	return "Object"
}

// Named refers to a class by name. It is resolved through the Resolver given
// to Compile, which lets two classes reference each other.
type Named string

// ArrayOf returns the typed array token for elem
func ArrayOf(elem any) []any {
	return []any{elem}
}

// Class is the capability a document type exposes to the schema layer.
// Classes whose IsEmbedded reports true compile to embedded references,
// every other class to document references.
type Class interface {
	ClassName() string
	IsEmbedded() bool
}

// Resolver looks up classes referenced by Named tokens
type Resolver interface {
	Resolve(name string) (Class, bool)
}

// Instance is implemented by runtime documents so validators can check which
// class a value belongs to.
type Instance interface {
	Class() Class
}

// IDChecker recognizes the storage engine's native identifiers
type IDChecker interface {
	IsNativeID(v any) bool
}

// Custom holds the marshalling functions of a custom typed field
type Custom struct {
	ToData   func(any) (any, error)
	FromData func(any) (any, error)
	Validate func(any) bool
}

// Type is the resolved type descriptor of a field. Exactly the members
// relevant to Kind are set.
type Type struct {
	Kind   Kind
	Basic  Basic   // KindBasic
	Elem   *Type   // KindArray
	Target Class   // KindDocumentRef, KindEmbeddedRef
	Custom *Custom // KindCustom
	Native string  // KindNativeID, the engine's id type name when known
}

// IsBasic reports whether t is the given basic type
func (t Type) IsBasic(b Basic) bool {
	return t.Kind == KindBasic && t.Basic == b
}

// IsArrayOf reports whether t is an array whose elements are the given basic type
func (t Type) IsArrayOf(b Basic) bool {
	return t.Kind == KindArray && t.Elem != nil && t.Elem.IsBasic(b)
}

// String returns a readable name such as "Number", "[String]" or "Ref<User>"
func (t Type) String() string {
	switch t.Kind {
	case KindBasic:
		return t.Basic.String()
	case KindArray:
		if t.Elem == nil {
			return "[]"
		}
		return "[" + t.Elem.String() + "]"
	case KindDocumentRef:
		return "Ref<" + className(t.Target) + ">"
	case KindEmbeddedRef:
		return "Embedded<" + className(t.Target) + ">"
	case KindCustom:
		return "Custom"
	case KindNativeID:
		if t.Native != "" {
			return "ID<" + t.Native + ">"
		}
		return "ID"
	}
	return "unknown"
}

func className(c Class) string {
	if c == nil {
		return "?"
	}
	return c.ClassName()
}

// Decl declares one field. Spec is a type token or an Opts map.
type Decl struct {
	Key  string
	Spec any
}

// Decls is an ordered field declaration list; order is preserved for
// validation, serialization and iteration.
type Decls []Decl

// Opts is the options form of a field declaration. Allowed keys are listed
// in OptionKeys.
type Opts map[string]any
