package nanodm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/types"
)

// Save validates and persists the document, inserting it on the first call
// and replacing the stored record by id afterwards. The sequence is:
// preValidate hooks, Validate, Canonicalize, postValidate hooks, preSave
// hooks, persist, postSave hooks. Embedded documents' hooks run before their
// parent's in every phase. Referenced documents that were never saved are
// saved first.
//
// Any failure stops the sequence. Storage errors are returned unwrapped and
// leave the id of a new document unset.
func (d *Document) Save(ctx context.Context) error {
	m := d.model
	adapter, err := m.prepare(ctx)
	if err != nil {
		return err
	}
	if d.saving {
		return fmt.Errorf("%w: %s", ErrReferenceCycle, d)
	}
	d.saving = true
	defer func() { d.saving = false }()

	if err := d.runHooks(ctx, PhasePreValidate); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	d.Canonicalize()
	if err := d.runHooks(ctx, PhasePostValidate); err != nil {
		return err
	}
	if err := d.runHooks(ctx, PhasePreSave); err != nil {
		return err
	}

	data, err := d.ToData(false)
	if err != nil {
		return err
	}
	if err := m.refsToIDs(ctx, data); err != nil {
		return err
	}

	id, err := adapter.Save(ctx, m.collection, d.id, data)
	if err != nil {
		return err
	}
	d.id = id
	m.db.logger.Debug("saved document",
		zap.String("class", m.name), zap.Any("id", id))

	return d.runHooks(ctx, PhasePostSave)
}

// Delete removes the document's record and returns the number of records
// removed. Unsaved documents delete nothing and run no hooks.
func (d *Document) Delete(ctx context.Context) (int, error) {
	m := d.model
	adapter, err := m.prepare(ctx)
	if err != nil {
		return 0, err
	}
	if d.id == nil {
		return 0, nil
	}

	if err := d.runHooks(ctx, PhasePreDelete); err != nil {
		return 0, err
	}
	n, err := adapter.Delete(ctx, m.collection, d.id)
	if err != nil {
		return 0, err
	}
	m.db.logger.Debug("deleted document",
		zap.String("class", m.name), zap.Any("id", d.id), zap.Int("count", n))

	if err := d.runHooks(ctx, PhasePostDelete); err != nil {
		return n, err
	}
	return n, nil
}

// refsToIDs replaces referenced documents in data with their ids, saving
// the ones that have no id yet
func (m *Model) refsToIDs(ctx context.Context, data types.Record) error {
	s := m.compiled()
	for _, key := range s.RefKeys() {
		v, ok := data[key]
		if !ok {
			continue
		}
		id, err := refID(ctx, v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", m.name, key, err)
		}
		data[key] = id
	}
	for _, key := range s.RefArrayKeys() {
		elems, ok := validation.SliceValues(data[key])
		if !ok {
			continue
		}
		for i, e := range elems {
			id, err := refID(ctx, e)
			if err != nil {
				return fmt.Errorf("%s.%s[%d]: %w", m.name, key, i, err)
			}
			elems[i] = id
		}
		data[key] = elems
	}
	return nil
}

func refID(ctx context.Context, v any) (any, error) {
	doc, ok := v.(*Document)
	if !ok {
		return v, nil
	}
	if doc == nil {
		return nil, nil
	}
	if doc.id == nil {
		if err := doc.Save(ctx); err != nil {
			return nil, err
		}
	}
	return doc.id, nil
}
