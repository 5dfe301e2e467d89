package nanodm

import (
	"encoding/base64"
	"fmt"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/nanodm/schema"
	"github.com/arthur-debert/nanodm/types"
)

// build creates a document from raw input (stored false) or from a record
// read back from storage (stored true). Stored records may carry engine
// representations (base64 binary, date strings, custom data) and keys the
// class no longer declares, which are dropped.
func (m *Model) build(data map[string]any, stored bool) (*Document, error) {
	s, err := m.Schema()
	if err != nil {
		return nil, err
	}

	d := &Document{model: m, values: make(map[string]any, s.Len())}
	for _, e := range s.DataEntries() {
		switch {
		case e.HasDefault():
			v, err := m.coerce(e.Type, e.Default(), false)
			if err != nil {
				return nil, fmt.Errorf("default of %s.%s: %w", m.name, e.Key, err)
			}
			d.values[e.Key] = v
		case e.Type.Kind == schema.KindArray:
			d.values[e.Key] = []any{}
		}
	}

	for _, key := range sortedKeys(data) {
		raw := data[key]
		if key == types.IDField && !m.embedded {
			if !validation.IsNil(raw) {
				d.id = raw
			}
			continue
		}
		e, ok := s.Entry(key)
		if !ok {
			if stored {
				continue
			}
			if err := d.handleUnknown(key, raw); err != nil {
				return nil, err
			}
			continue
		}
		v, err := m.coerce(e.Type, types.DeepCopy(raw), stored)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.name, key, err)
		}
		d.values[key] = v
	}
	return d, nil
}

// coerce converts a raw value to the runtime shape of t. Values that cannot
// be converted are returned unchanged so validation reports them.
func (m *Model) coerce(t schema.Type, v any, stored bool) (any, error) {
	if validation.IsNil(v) {
		return nil, nil
	}

	switch t.Kind {
	case schema.KindBasic:
		return coerceBasic(t.Basic, v, stored), nil

	case schema.KindArray:
		elems, ok := validation.SliceValues(v)
		if !ok || t.Elem == nil {
			return v, nil
		}
		for i, e := range elems {
			c, err := m.coerce(*t.Elem, e, stored)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = c
		}
		return elems, nil

	case schema.KindEmbeddedRef:
		if _, ok := v.(*Document); ok {
			return v, nil
		}
		raw, ok := validation.StringMap(v)
		if !ok {
			return v, nil
		}
		target, ok := t.Target.(*Model)
		if !ok {
			return v, nil
		}
		return target.build(raw, stored)

	case schema.KindCustom:
		if !stored {
			return v, nil
		}
		out, err := t.Custom.FromData(v)
		if err != nil {
			return nil, fmt.Errorf("fromData: %w", err)
		}
		return out, nil
	}

	// Document references stay as given: an id or a *Document
	return v, nil
}

func coerceBasic(b schema.Basic, v any, stored bool) any {
	switch b {
	case schema.Number:
		if f, ok := validation.ToFloat(v); ok {
			return f
		}
	case schema.Date:
		if t, ok := schema.ToDate(v); ok {
			return t
		}
	case schema.Binary:
		if s, ok := v.(string); ok && stored {
			if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
				return raw
			}
		}
	}
	return v
}

// toDataValue reduces a field value to its storage form. Referenced
// documents are left in place for refsToIDs.
func toDataValue(t schema.Type, v any) (any, error) {
	if validation.IsNil(v) {
		return nil, nil
	}

	switch t.Kind {
	case schema.KindEmbeddedRef:
		if doc, ok := v.(*Document); ok {
			return doc.ToData(false)
		}
	case schema.KindArray:
		elems, ok := validation.SliceValues(v)
		if !ok || t.Elem == nil {
			break
		}
		for i, e := range elems {
			c, err := toDataValue(*t.Elem, e)
			if err != nil {
				return nil, err
			}
			elems[i] = c
		}
		return elems, nil
	case schema.KindCustom:
		out, err := t.Custom.ToData(v)
		if err != nil {
			return nil, fmt.Errorf("toData: %w", err)
		}
		return out, nil
	case schema.KindDocumentRef:
		return v, nil
	}
	return types.DeepCopy(v), nil
}
