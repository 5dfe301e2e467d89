package nanodm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/nanodm/schema"
	"github.com/arthur-debert/nanodm/types"
)

// Document is an instance of a class. Field values are freely mutable; every
// save serializes the full current state.
//
// A Document is not safe for concurrent use.
type Document struct {
	model  *Model
	id     any
	values map[string]any
	extra  map[string]any

	// saving marks a document whose Save is in progress, to detect
	// reference cycles between unsaved documents
	saving bool
}

var _ schema.Instance = (*Document)(nil)

// ID returns the storage id, nil until the first save
func (d *Document) ID() any { return d.id }

// Model returns the document's class
func (d *Document) Model() *Model { return d.model }

// Class implements schema.Instance
func (d *Document) Class() schema.Class { return d.model }

// Get returns the value of a field or accepted extra key, nil when unset
func (d *Document) Get(key string) any {
	if key == types.IDField && !d.model.embedded {
		return d.id
	}
	if v, ok := d.values[key]; ok {
		return v
	}
	return d.extra[key]
}

// Has reports whether a field or extra key holds a value
func (d *Document) Has(key string) bool {
	if key == types.IDField && !d.model.embedded {
		return d.id != nil
	}
	if v, ok := d.values[key]; ok {
		return !validation.IsNil(v)
	}
	_, ok := d.extra[key]
	return ok
}

// Set assigns a field. Values are coerced like Create input; keys the class
// does not declare follow the unknown key policy.
func (d *Document) Set(key string, value any) error {
	if key == types.IDField && !d.model.embedded {
		d.id = value
		return nil
	}
	e, ok := d.model.compiled().Entry(key)
	if !ok {
		return d.handleUnknown(key, value)
	}
	v, err := d.model.coerce(e.Type, value, false)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", d.model.name, key, err)
	}
	d.values[key] = v
	return nil
}

// Unset removes the value of a field or extra key
func (d *Document) Unset(key string) {
	delete(d.values, key)
	delete(d.extra, key)
}

// SetExtra stores a value under a key the class does not declare. Extras are
// never persisted.
func (d *Document) SetExtra(key string, value any) {
	if d.extra == nil {
		d.extra = make(map[string]any)
	}
	d.extra[key] = value
}

// Extra returns an extra value
func (d *Document) Extra(key string) (any, bool) {
	v, ok := d.extra[key]
	return v, ok
}

// Extras returns a copy of the extra values
func (d *Document) Extras() map[string]any {
	out := make(map[string]any, len(d.extra))
	for k, v := range d.extra {
		out[k] = v
	}
	return out
}

// ToData returns the storage form of the document: embedded documents as
// nested records, custom fields through their toData function. Reference
// fields keep whatever they hold (an id or a *Document). Private fields are
// included; the id only when includeID is set.
func (d *Document) ToData(includeID bool) (types.Record, error) {
	out := make(types.Record, len(d.values)+1)
	if includeID && d.id != nil {
		out[types.IDField] = d.id
	}
	for _, e := range d.model.compiled().DataEntries() {
		v, ok := d.values[e.Key]
		if !ok {
			continue
		}
		dv, err := toDataValue(e.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.model.name, e.Key, err)
		}
		out[e.Key] = dv
	}
	return out, nil
}

// ToJSON returns the public form of the document: like ToData with the id,
// without private fields, and with nested documents (embedded or populated)
// reduced through their own ToJSON.
func (d *Document) ToJSON() (map[string]any, error) {
	out := make(map[string]any, len(d.values)+1)
	if d.id != nil {
		out[types.IDField] = d.id
	}
	for _, e := range d.model.compiled().JSONEntries() {
		if e.Key == types.IDField {
			continue
		}
		v, ok := d.values[e.Key]
		if !ok {
			continue
		}
		jv, err := jsonValue(e.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.model.name, e.Key, err)
		}
		out[e.Key] = jv
	}
	return out, nil
}

func jsonValue(t schema.Type, v any) (any, error) {
	if doc, ok := v.(*Document); ok && doc != nil {
		return doc.ToJSON()
	}
	switch t.Kind {
	case schema.KindArray:
		elems, ok := validation.SliceValues(v)
		if !ok || t.Elem == nil {
			break
		}
		for i, e := range elems {
			c, err := jsonValue(*t.Elem, e)
			if err != nil {
				return nil, err
			}
			elems[i] = c
		}
		return elems, nil
	case schema.KindCustom:
		return toDataValue(t, v)
	}
	return v, nil
}

// MarshalJSON encodes the ToJSON form with the id first and fields in
// declaration order
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", d.model.name, key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(raw)
		return nil
	}

	if d.id != nil {
		if err := write(types.IDField, d.id); err != nil {
			return nil, err
		}
	}
	for _, e := range d.model.compiled().JSONEntries() {
		if e.Key == types.IDField {
			continue
		}
		v, ok := d.values[e.Key]
		if !ok {
			continue
		}
		if e.Type.Kind == schema.KindCustom && !validation.IsNil(v) {
			var err error
			if v, err = toDataValue(e.Type, v); err != nil {
				return nil, err
			}
		}
		if err := write(e.Key, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Populate resolves the document's reference fields, all of them when no
// field is named
func (d *Document) Populate(ctx context.Context, fields ...string) error {
	return d.model.Populate(ctx, []*Document{d}, fields...)
}

// embeddedChildren returns the embedded documents held by d's embedded
// fields, in declaration order
func (d *Document) embeddedChildren() []*Document {
	var out []*Document
	for _, e := range d.model.compiled().DataEntries() {
		switch {
		case e.Type.Kind == schema.KindEmbeddedRef:
			if child, ok := d.values[e.Key].(*Document); ok && child != nil {
				out = append(out, child)
			}
		case e.Type.Kind == schema.KindArray && e.Type.Elem.Kind == schema.KindEmbeddedRef:
			elems, _ := validation.SliceValues(d.values[e.Key])
			for _, el := range elems {
				if child, ok := el.(*Document); ok && child != nil {
					out = append(out, child)
				}
			}
		}
	}
	return out
}

// String identifies the document in logs and test failures
func (d *Document) String() string {
	if d.id == nil {
		return d.model.name + "(unsaved)"
	}
	return fmt.Sprintf("%s(%v)", d.model.name, d.id)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
