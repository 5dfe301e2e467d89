package nanodm

import (
	"fmt"
	"time"

	"github.com/arthur-debert/nanodm/internal/matching"
	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/nanodm/schema"
)

// Validate checks every field in declaration order and returns the first
// failure as a *ValidationError. Per field the checks run as: type, required,
// match, choices, min/max, validate. Embedded documents are validated
// recursively instead of going through the value checks.
func (d *Document) Validate() error {
	for _, e := range d.model.compiled().DataEntries() {
		if err := d.validateField(e, d.values[e.Key]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) validateField(e schema.Entry, v any) error {
	fail := func(format string, args ...any) error {
		return &ValidationError{Class: d.model.name, Field: e.Key, Reason: fmt.Sprintf(format, args...)}
	}

	if !d.model.conforms(e.Type, v) {
		return fail("expected %s, got %s", schema.TypeName(e.Type), schema.Describe(v))
	}
	if e.Required && validation.IsEmpty(v) {
		return fail("is required")
	}
	if e.Type.Kind == schema.KindCustom && !validation.IsNil(v) && !e.Type.Custom.Validate(v) {
		return fail("value rejected by the custom type's validate()")
	}

	if children := embeddedValues(e.Type, v); children != nil {
		for _, child := range children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	}

	if validation.IsNil(v) {
		return nil
	}
	if e.Match != nil {
		for _, s := range matchValues(v) {
			if !e.Match.MatchString(s) {
				return fail("value %q does not match %s", s, e.Match.String())
			}
		}
	}
	if len(e.Choices) > 0 && !inChoices(e.Type, v, e.Choices) {
		return fail("value %v is not one of %v", v, e.Choices)
	}
	if e.Min != nil && belowMin(v, e.Min) {
		return fail("value %v is less than the minimum %v", v, e.Min)
	}
	if e.Max != nil && aboveMax(v, e.Max) {
		return fail("value %v is greater than the maximum %v", v, e.Max)
	}
	if e.Validate != nil && !e.Validate(v) {
		return fail("value rejected by custom validate()")
	}
	return nil
}

// conforms checks a value against a field type, with document ids checked by
// the connected adapter
func (m *Model) conforms(t schema.Type, v any) bool {
	return schema.ValueMatchesType(v, t, m.db)
}

// embeddedValues returns the embedded documents of an embedded field, or nil
// for every other kind of field
func embeddedValues(t schema.Type, v any) []*Document {
	switch {
	case t.Kind == schema.KindEmbeddedRef:
		if doc, ok := v.(*Document); ok && doc != nil {
			return []*Document{doc}
		}
		return []*Document{}
	case t.Kind == schema.KindArray && t.Elem.Kind == schema.KindEmbeddedRef:
		elems, _ := validation.SliceValues(v)
		out := make([]*Document, 0, len(elems))
		for _, el := range elems {
			if doc, ok := el.(*Document); ok && doc != nil {
				out = append(out, doc)
			}
		}
		return out
	}
	return nil
}

func matchValues(v any) []string {
	if s, ok := v.(string); ok {
		return []string{s}
	}
	elems, _ := validation.SliceValues(v)
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func inChoices(t schema.Type, v any, choices []any) bool {
	v = canonicalValue(t, v)
	for _, c := range choices {
		if matching.Equal(v, c) {
			return true
		}
	}
	return false
}

// bound compares a Number or Date value to a compiled bound
func bound(v, b any) (int, bool) {
	switch limit := b.(type) {
	case float64:
		f, ok := validation.ToFloat(v)
		if !ok {
			return 0, false
		}
		switch {
		case f < limit:
			return -1, true
		case f > limit:
			return 1, true
		}
		return 0, true
	case time.Time:
		t, ok := schema.ToDate(v)
		if !ok {
			return 0, false
		}
		return t.Compare(limit), true
	}
	return 0, false
}

func belowMin(v, lo any) bool {
	c, ok := bound(v, lo)
	return ok && c < 0
}

func aboveMax(v, hi any) bool {
	c, ok := bound(v, hi)
	return ok && c > 0
}

// Canonicalize converts date-like values of Date fields to time.Time and
// numbers to float64, recursing into embedded documents
func (d *Document) Canonicalize() {
	for _, e := range d.model.compiled().DataEntries() {
		v, ok := d.values[e.Key]
		if !ok || validation.IsNil(v) {
			continue
		}
		if children := embeddedValues(e.Type, v); children != nil {
			for _, child := range children {
				child.Canonicalize()
			}
			continue
		}
		d.values[e.Key] = canonicalValue(e.Type, v)
	}
}

func canonicalValue(t schema.Type, v any) any {
	switch t.Kind {
	case schema.KindBasic:
		switch t.Basic {
		case schema.Number:
			if f, ok := validation.ToFloat(v); ok {
				return f
			}
		case schema.Date:
			if tm, ok := schema.ToDate(v); ok {
				return tm
			}
		}
	case schema.KindArray:
		elems, ok := validation.SliceValues(v)
		if !ok || t.Elem == nil {
			return v
		}
		for i, e := range elems {
			elems[i] = canonicalValue(*t.Elem, e)
		}
		return elems
	}
	return v
}
