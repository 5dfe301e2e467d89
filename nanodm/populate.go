package nanodm

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/nanodm/schema"
	"github.com/arthur-debert/nanodm/types"
)

// refSlot is one place a fetched document has to be written back to: a
// single reference field (index -1) or a position in a reference array
type refSlot struct {
	doc   *Document
	field string
	index int
}

// refBatch collects the ids to fetch from one target class
type refBatch struct {
	target  *Model
	ids     []any
	slots   map[string][]refSlot
	records []types.Record
}

type arrayKey struct {
	doc   *Document
	field string
}

// Populate replaces reference ids in the named fields of docs (all reference
// fields when none are named) with hydrated documents. It issues one Find
// per target class, concurrently, and does not populate the fetched
// documents in turn.
//
// Values that already are documents are kept. A single reference whose
// target does not exist becomes nil; missing array elements are dropped,
// the remaining ones keep their order.
func (m *Model) Populate(ctx context.Context, docs []*Document, fields ...string) error {
	adapter, err := m.prepare(ctx)
	if err != nil {
		return err
	}
	selected, err := m.refFields(fields)
	if err != nil {
		return err
	}
	if len(selected) == 0 || len(docs) == 0 {
		return nil
	}

	var order []*Model
	var singles []refSlot
	batches := make(map[*Model]*refBatch)
	arrays := make(map[arrayKey][]any)

	add := func(target *Model, id any, s refSlot) {
		b, ok := batches[target]
		if !ok {
			b = &refBatch{target: target, slots: make(map[string][]refSlot)}
			batches[target] = b
			order = append(order, target)
		}
		key := adapter.CanonicalID(id)
		if _, seen := b.slots[key]; !seen {
			b.ids = append(b.ids, id)
		}
		b.slots[key] = append(b.slots[key], s)
	}

	for _, d := range docs {
		if d != nil && d.model != m {
			return fmt.Errorf("nanodm: cannot populate a %s as a %s", d.model.name, m.name)
		}
	}

	// Documents are only written to once every fetch succeeded, so a failed
	// population leaves the stored ids in place.
	visited := make(map[*Document]bool, len(docs))
	for _, d := range docs {
		if d == nil || visited[d] {
			continue
		}
		visited[d] = true
		for _, e := range selected {
			v := d.values[e.Key]
			if e.Type.Kind == schema.KindDocumentRef {
				if _, hydrated := v.(*Document); hydrated || validation.IsNil(v) {
					continue
				}
				target, err := targetModel(e.Type)
				if err != nil {
					return err
				}
				s := refSlot{doc: d, field: e.Key, index: -1}
				singles = append(singles, s)
				add(target, v, s)
				continue
			}

			elems, ok := validation.SliceValues(v)
			if !ok {
				continue
			}
			target, err := targetModel(*e.Type.Elem)
			if err != nil {
				return err
			}
			resolved := make([]any, len(elems))
			for i, el := range elems {
				if _, hydrated := el.(*Document); hydrated {
					resolved[i] = el
					continue
				}
				if validation.IsNil(el) {
					continue
				}
				add(target, el, refSlot{doc: d, field: e.Key, index: i})
			}
			arrays[arrayKey{d, e.Key}] = resolved
		}
	}
	if len(order) == 0 && len(arrays) == 0 {
		return nil
	}

	for _, target := range order {
		if _, err := target.prepare(ctx); err != nil {
			return err
		}
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, target := range order {
		b := batches[target]
		p.Go(func(ctx context.Context) error {
			records, err := adapter.Find(ctx, b.target.collection,
				types.Query{types.IDField: map[string]any{"$in": b.ids}}, types.FindOptions{})
			if err != nil {
				return fmt.Errorf("failed to populate %s references: %w", b.target.name, err)
			}
			b.records = records
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	found := make(map[refSlot]*Document)
	for _, target := range order {
		b := batches[target]
		for _, r := range b.records {
			fetched, err := target.hydrate(r)
			if err != nil {
				return err
			}
			for _, s := range b.slots[adapter.CanonicalID(r.ID())] {
				if s.index < 0 {
					found[s] = fetched
					continue
				}
				arrays[arrayKey{s.doc, s.field}][s.index] = fetched
			}
		}
		m.db.logger.Debug("populated references",
			zap.String("class", m.name),
			zap.String("target", target.name),
			zap.Int("ids", len(b.ids)),
			zap.Int("found", len(b.records)))
	}

	for _, s := range singles {
		if fetched, ok := found[s]; ok {
			s.doc.values[s.field] = fetched
			continue
		}
		s.doc.values[s.field] = nil
	}
	for key, resolved := range arrays {
		out := make([]any, 0, len(resolved))
		for _, v := range resolved {
			if v != nil {
				out = append(out, v)
			}
		}
		key.doc.values[key.field] = out
	}
	return nil
}

// refFields returns the reference entries named by fields, or all of them
func (m *Model) refFields(fields []string) ([]schema.Entry, error) {
	s := m.compiled()
	if len(fields) == 0 {
		var out []schema.Entry
		for _, e := range s.DataEntries() {
			if isRefEntry(e) {
				out = append(out, e)
			}
		}
		return out, nil
	}

	out := make([]schema.Entry, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		e, ok := s.Entry(f)
		if !ok || !isRefEntry(e) {
			return nil, fmt.Errorf("nanodm: %s has no reference field %q", m.name, f)
		}
		out = append(out, e)
	}
	return out, nil
}

func isRefEntry(e schema.Entry) bool {
	if e.Type.Kind == schema.KindDocumentRef {
		return true
	}
	return e.Type.Kind == schema.KindArray && e.Type.Elem.Kind == schema.KindDocumentRef
}

func targetModel(t schema.Type) (*Model, error) {
	target, ok := t.Target.(*Model)
	if !ok {
		return nil, fmt.Errorf("nanodm: reference target %s is not a registered class", t)
	}
	return target, nil
}
