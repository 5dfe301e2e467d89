package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/internal/matching"
	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// CreateIndex records an index definition. Unique indexes are enforced on
// every later write; creating one over data that already holds duplicates
// fails with storage.ErrUniqueViolation. Records without a value for the
// field are not indexed.
func (s *Store) CreateIndex(ctx context.Context, collection, field string, opts types.IndexOptions) error {
	if err := validation.ValidateFieldName(field); err != nil && field != types.IDField {
		return err
	}

	return s.lockManager.Execute(storage.WriteOperation, func() error {
		if err := s.check(ctx); err != nil {
			return err
		}

		existing, found := s.data.Index(collection, field)
		if found && existing.Unique == opts.Unique {
			return nil
		}
		if opts.Unique {
			if dup, ok := firstDuplicate(s.data.Collections[collection], field); ok {
				return fmt.Errorf("%w: cannot create unique index on %s.%s, duplicate value %v",
					storage.ErrUniqueViolation, collection, field, dup)
			}
		}

		prev := s.data.Indexes[collection]
		next := make([]storage.IndexDefinition, 0, len(prev)+1)
		for _, idx := range prev {
			if idx.Field != field {
				next = append(next, idx)
			}
		}
		next = append(next, storage.IndexDefinition{Field: field, Unique: opts.Unique})
		s.data.Indexes[collection] = next

		if err := s.persist(); err != nil {
			s.data.Indexes[collection] = prev
			return fmt.Errorf("failed to save: %w", err)
		}
		s.logger.Debug("created index",
			zap.String("collection", collection),
			zap.String("field", field),
			zap.Bool("unique", opts.Unique))
		return nil
	})
}

// checkUnique verifies the record at pos against every unique index of the
// collection. Caller must hold the lock.
func (s *Store) checkUnique(collection string, records []types.Record, pos int) error {
	candidate := records[pos]
	for _, idx := range s.data.Indexes[collection] {
		if !idx.Unique {
			continue
		}
		value, ok := indexedValue(candidate, idx.Field)
		if !ok {
			continue
		}
		for i, r := range records {
			if i == pos {
				continue
			}
			if other, ok := indexedValue(r, idx.Field); ok && matching.Equal(value, other) {
				return fmt.Errorf("%w: %s.%s already holds %v", storage.ErrUniqueViolation, collection, idx.Field, value)
			}
		}
	}
	return nil
}

func firstDuplicate(records []types.Record, field string) (any, bool) {
	var seen []any
	for _, r := range records {
		value, ok := indexedValue(r, field)
		if !ok {
			continue
		}
		for _, v := range seen {
			if matching.Equal(v, value) {
				return value, true
			}
		}
		seen = append(seen, value)
	}
	return nil, false
}

// indexedValue returns the value a record contributes to an index. Missing
// and null values are not indexed.
func indexedValue(r types.Record, field string) (any, bool) {
	v, ok := matching.Lookup(r, field)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
