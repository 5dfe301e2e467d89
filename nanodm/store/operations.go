package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/internal/matching"
	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// Save inserts values when id is nil and upserts by id otherwise
func (s *Store) Save(ctx context.Context, collection string, id any, values types.Record) (any, error) {
	record, err := normalizeRecord(values)
	if err != nil {
		return nil, err
	}

	return storage.ExecuteWithResult(s.lockManager, storage.WriteOperation, func() (any, error) {
		if err := s.check(ctx); err != nil {
			return nil, err
		}

		var key string
		if id == nil {
			key = s.newID()
		} else {
			key = s.CanonicalID(id)
		}
		record[types.IDField] = key

		prev := s.data.Collections[collection]
		next := append(make([]types.Record, 0, len(prev)+1), prev...)
		pos := indexOfID(next, key)
		if pos < 0 {
			next = append(next, record)
			pos = len(next) - 1
		} else {
			next[pos] = record
		}

		if err := s.checkUnique(collection, next, pos); err != nil {
			return nil, err
		}
		if err := s.commit(collection, prev, next); err != nil {
			return nil, err
		}
		s.logger.Debug("saved record", zap.String("collection", collection), zap.String("id", key))
		return key, nil
	})
}

// Delete removes the record with the given id
func (s *Store) Delete(ctx context.Context, collection string, id any) (int, error) {
	return s.remove(ctx, collection, types.Query{types.IDField: s.CanonicalID(id)}, 1)
}

// DeleteOne removes the first record matching query
func (s *Store) DeleteOne(ctx context.Context, collection string, query types.Query) (int, error) {
	return s.remove(ctx, collection, query, 1)
}

// DeleteMany removes every record matching query
func (s *Store) DeleteMany(ctx context.Context, collection string, query types.Query) (int, error) {
	return s.remove(ctx, collection, query, 0)
}

// FindOneAndDelete removes the first record matching query
func (s *Store) FindOneAndDelete(ctx context.Context, collection string, query types.Query) (int, error) {
	return s.remove(ctx, collection, query, 1)
}

// remove deletes up to limit matching records; a limit of 0 removes all
func (s *Store) remove(ctx context.Context, collection string, query types.Query, limit int) (int, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return 0, err
	}

	return storage.ExecuteWithResult(s.lockManager, storage.WriteOperation, func() (int, error) {
		if err := s.check(ctx); err != nil {
			return 0, err
		}

		prev := s.data.Collections[collection]
		next := make([]types.Record, 0, len(prev))
		removed := 0
		for _, r := range prev {
			if limit == 0 || removed < limit {
				ok, err := s.matcher.Match(r, q)
				if err != nil {
					return 0, err
				}
				if ok {
					removed++
					continue
				}
			}
			next = append(next, r)
		}
		if removed == 0 {
			return 0, nil
		}
		if err := s.commit(collection, prev, next); err != nil {
			return 0, err
		}
		s.logger.Debug("removed records", zap.String("collection", collection), zap.Int("count", removed))
		return removed, nil
	})
}

// FindOne returns the first matching record in natural order, or nil
func (s *Store) FindOne(ctx context.Context, collection string, query types.Query) (types.Record, error) {
	records, err := s.Find(ctx, collection, query, types.FindOptions{Limit: 1})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// Find returns copies of the matching records, sorted and windowed by opts
func (s *Store) Find(ctx context.Context, collection string, query types.Query, opts types.FindOptions) ([]types.Record, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	if opts.Skip < 0 || opts.Limit < 0 {
		return nil, fmt.Errorf("skip and limit must not be negative")
	}

	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() ([]types.Record, error) {
		if err := s.check(ctx); err != nil {
			return nil, err
		}

		matched, err := s.filter(collection, q)
		if err != nil {
			return nil, err
		}
		matching.SortRecords(matched, opts.Sort)

		if opts.Skip >= len(matched) {
			return []types.Record{}, nil
		}
		matched = matched[opts.Skip:]
		if opts.Limit > 0 && opts.Limit < len(matched) {
			matched = matched[:opts.Limit]
		}

		out := make([]types.Record, len(matched))
		for i, r := range matched {
			out[i] = types.CopyRecord(r)
		}
		return out, nil
	})
}

// Count returns the number of matching records
func (s *Store) Count(ctx context.Context, collection string, query types.Query) (int, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return 0, err
	}

	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() (int, error) {
		if err := s.check(ctx); err != nil {
			return 0, err
		}
		matched, err := s.filter(collection, q)
		return len(matched), err
	})
}

// FindOneAndUpdate sets values on the first matching record
func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, query types.Query, values types.Record, opts types.UpdateOptions) (types.Record, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	update, err := normalizeRecord(values)
	if err != nil {
		return nil, err
	}
	delete(update, types.IDField)

	return storage.ExecuteWithResult(s.lockManager, storage.WriteOperation, func() (types.Record, error) {
		if err := s.check(ctx); err != nil {
			return nil, err
		}

		prev := s.data.Collections[collection]
		pos := -1
		for i, r := range prev {
			ok, err := s.matcher.Match(r, q)
			if err != nil {
				return nil, err
			}
			if ok {
				pos = i
				break
			}
		}

		next := append(make([]types.Record, 0, len(prev)+1), prev...)
		var record types.Record
		switch {
		case pos >= 0:
			record = types.CopyRecord(prev[pos])
			for k, v := range update {
				record[k] = v
			}
			next[pos] = record
		case opts.Upsert:
			record = upsertSeed(q)
			for k, v := range update {
				record[k] = v
			}
			if id, ok := record[types.IDField]; ok {
				record[types.IDField] = s.CanonicalID(id)
			} else {
				record[types.IDField] = s.newID()
			}
			next = append(next, record)
			pos = len(next) - 1
		default:
			return nil, nil
		}

		if err := s.checkUnique(collection, next, pos); err != nil {
			return nil, err
		}
		if err := s.commit(collection, prev, next); err != nil {
			return nil, err
		}
		return types.CopyRecord(record), nil
	})
}

// upsertSeed collects the plain equality conditions of a query
func upsertSeed(q types.Query) types.Record {
	seed := make(types.Record)
	for k, v := range q {
		if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
			continue
		}
		if m, ok := v.(map[string]any); ok && hasOperator(m) {
			if eq, ok := m["$eq"]; ok {
				seed[k] = types.DeepCopy(eq)
			}
			continue
		}
		seed[k] = types.DeepCopy(v)
	}
	return seed
}

func hasOperator(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// ClearCollection removes every record of a collection. Index definitions
// are kept.
func (s *Store) ClearCollection(ctx context.Context, collection string) error {
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		if err := s.check(ctx); err != nil {
			return err
		}
		prev, ok := s.data.Collections[collection]
		if !ok {
			return nil
		}
		return s.commit(collection, prev, nil)
	})
}

// DropDatabase removes every collection and index
func (s *Store) DropDatabase(ctx context.Context) error {
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		if err := s.check(ctx); err != nil {
			return err
		}
		prev := s.data
		s.data = storage.NewStoreData(s.timeFunc())
		s.data.Metadata.CreatedAt = prev.Metadata.CreatedAt
		if err := s.persist(); err != nil {
			s.data = prev
			return err
		}
		s.logger.Debug("dropped database", zap.String("path", s.Path()))
		return nil
	})
}

// filter returns the stored records matching q. Caller must hold the lock.
func (s *Store) filter(collection string, q types.Query) ([]types.Record, error) {
	var out []types.Record
	for _, r := range s.data.Collections[collection] {
		ok, err := s.matcher.Match(r, q)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// commit installs next as the collection's records and persists, restoring
// prev when persisting fails. Caller must hold the write lock.
func (s *Store) commit(collection string, prev, next []types.Record) error {
	if next == nil {
		delete(s.data.Collections, collection)
	} else {
		s.data.Collections[collection] = next
	}
	if err := s.persist(); err != nil {
		if prev == nil {
			delete(s.data.Collections, collection)
		} else {
			s.data.Collections[collection] = prev
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func indexOfID(records []types.Record, id string) int {
	for i, r := range records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
