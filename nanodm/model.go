package nanodm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/nanodm/schema"
	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// Model is a registered class. It implements schema.Class so it can be used
// directly as a reference type token in other declarations.
type Model struct {
	db         *DB
	name       string
	embedded   bool
	decls      schema.Decls
	collection string
	hooks      Hooks

	unknownPolicy  *UnknownKeyPolicy
	unknownHandler func(doc *Document, key string, value any) error

	compileOnce sync.Once
	sch         *schema.Schema
	schErr      error

	indexMu sync.Mutex
	indexed bool
}

var _ schema.Class = (*Model)(nil)

func newModel(db *DB, name string, embedded bool, decls schema.Decls, opts []ModelOption) *Model {
	m := &Model{
		db:         db,
		name:       name,
		embedded:   embedded,
		decls:      copyDecls(decls),
		collection: strings.ToLower(name) + "s",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// copyDecls detaches the declarations from the caller's slices and maps
func copyDecls(decls schema.Decls) schema.Decls {
	out := make(schema.Decls, len(decls))
	for i, d := range decls {
		out[i] = schema.Decl{Key: d.Key, Spec: types.DeepCopy(d.Spec)}
	}
	return out
}

// ClassName implements schema.Class
func (m *Model) ClassName() string { return m.name }

// IsEmbedded implements schema.Class
func (m *Model) IsEmbedded() bool { return m.embedded }

// Collection returns the storage collection name
func (m *Model) Collection() string { return m.collection }

// DB returns the registry the class belongs to
func (m *Model) DB() *DB { return m.db }

// Schema compiles the declarations on first call and returns the cached
// result afterwards
func (m *Model) Schema() (*schema.Schema, error) {
	m.compileOnce.Do(func() {
		m.sch, m.schErr = schema.Compile(m, m.decls, m.db)
		if m.schErr == nil {
			m.db.logger.Debug("compiled schema",
				zap.String("class", m.name), zap.Int("fields", m.sch.Len()))
		}
	})
	return m.sch, m.schErr
}

// compiled returns the schema of a class that already has documents
func (m *Model) compiled() *schema.Schema {
	s, _ := m.Schema()
	return s
}

// prepare returns the adapter for a persistence operation, making sure the
// class is persistable and its indexes exist
func (m *Model) prepare(ctx context.Context) (storage.Adapter, error) {
	if m.embedded {
		return nil, ErrEmbeddedPersistence
	}
	adapter, err := m.db.Adapter()
	if err != nil {
		return nil, err
	}
	if _, err := m.Schema(); err != nil {
		return nil, err
	}
	if err := m.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}

// EnsureIndexes asks the adapter for an index on every unique or indexed
// field. It runs before the first persistence operation of the class and is
// a no-op once it has succeeded.
func (m *Model) EnsureIndexes(ctx context.Context) error {
	if m.embedded {
		return ErrEmbeddedPersistence
	}
	s, err := m.Schema()
	if err != nil {
		return err
	}
	adapter, err := m.db.Adapter()
	if err != nil {
		return err
	}

	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	if m.indexed {
		return nil
	}

	unique := make(map[string]bool)
	for _, key := range s.UniqueKeys() {
		unique[key] = true
		if err := adapter.CreateIndex(ctx, m.collection, key, types.IndexOptions{Unique: true}); err != nil {
			return fmt.Errorf("failed to create unique index on %s.%s: %w", m.name, key, err)
		}
	}
	for _, key := range s.IndexedKeys() {
		if unique[key] {
			continue
		}
		if err := adapter.CreateIndex(ctx, m.collection, key, types.IndexOptions{}); err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", m.name, key, err)
		}
	}
	m.indexed = true
	m.db.logger.Debug("ensured indexes",
		zap.String("class", m.name),
		zap.Strings("unique", s.UniqueKeys()),
		zap.Strings("indexed", s.IndexedKeys()))
	return nil
}

// Create instantiates a document: defaults first, then data. Known keys are
// coerced to their field type, unknown keys follow the class's unknown key
// policy. The document is not saved.
func (m *Model) Create(data map[string]any) (*Document, error) {
	return m.build(data, false)
}

// MustCreate is like Create but panics on error
func (m *Model) MustCreate(data map[string]any) *Document {
	d, err := m.Create(data)
	if err != nil {
		panic(err)
	}
	return d
}

// hydrate turns a stored record back into a document
func (m *Model) hydrate(r types.Record) (*Document, error) {
	return m.build(r, true)
}

// FromData turns a stored record back into a document the way Find does:
// values are coerced by field type and unknown keys are dropped. The
// document is not validated.
func (m *Model) FromData(r types.Record) (*Document, error) {
	return m.hydrate(r)
}

func (m *Model) hydrateAll(records []types.Record) ([]*Document, error) {
	docs := make([]*Document, 0, len(records))
	for _, r := range records {
		d, err := m.hydrate(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// FindOne returns the first matching document, or nil
func (m *Model) FindOne(ctx context.Context, query types.Query, opts ...FindOption) (*Document, error) {
	cfg := newFindConfig(opts)
	cfg.limit = 1
	docs, err := m.find(ctx, query, cfg)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Find returns the matching documents. References are populated unless
// Populate(false) is given.
func (m *Model) Find(ctx context.Context, query types.Query, opts ...FindOption) ([]*Document, error) {
	return m.find(ctx, query, newFindConfig(opts))
}

func (m *Model) find(ctx context.Context, query types.Query, cfg findConfig) ([]*Document, error) {
	adapter, err := m.prepare(ctx)
	if err != nil {
		return nil, err
	}
	records, err := adapter.Find(ctx, m.collection, prepareQuery(query), cfg.findOptions())
	if err != nil {
		return nil, err
	}
	docs, err := m.hydrateAll(records)
	if err != nil {
		return nil, err
	}
	if cfg.populate {
		if err := m.Populate(ctx, docs, cfg.fields...); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// DeleteOne removes the first matching record. Hooks do not run.
func (m *Model) DeleteOne(ctx context.Context, query types.Query) (int, error) {
	adapter, err := m.prepare(ctx)
	if err != nil {
		return 0, err
	}
	return adapter.DeleteOne(ctx, m.collection, prepareQuery(query))
}

// DeleteMany removes every matching record. Hooks do not run.
func (m *Model) DeleteMany(ctx context.Context, query types.Query) (int, error) {
	adapter, err := m.prepare(ctx)
	if err != nil {
		return 0, err
	}
	return adapter.DeleteMany(ctx, m.collection, prepareQuery(query))
}

// FindOneAndDelete removes the first matching record. Hooks do not run.
func (m *Model) FindOneAndDelete(ctx context.Context, query types.Query) (int, error) {
	adapter, err := m.prepare(ctx)
	if err != nil {
		return 0, err
	}
	return adapter.FindOneAndDelete(ctx, m.collection, prepareQuery(query))
}

// FindOneAndUpdate sets values on the first matching record and returns the
// updated document, or nil when nothing matched and Upsert was not given.
// Values are coerced and type checked per field; document values are stored
// as their ids.
func (m *Model) FindOneAndUpdate(ctx context.Context, query types.Query, values map[string]any, opts ...FindOption) (*Document, error) {
	cfg := newFindConfig(opts)
	adapter, err := m.prepare(ctx)
	if err != nil {
		return nil, err
	}
	update, err := m.updateValues(ctx, values)
	if err != nil {
		return nil, err
	}

	record, err := adapter.FindOneAndUpdate(ctx, m.collection, prepareQuery(query), update, types.UpdateOptions{Upsert: cfg.upsert})
	if err != nil || record == nil {
		return nil, err
	}
	d, err := m.hydrate(record)
	if err != nil {
		return nil, err
	}
	if cfg.populate {
		if err := m.Populate(ctx, []*Document{d}, cfg.fields...); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// updateValues converts update input to its storage form
func (m *Model) updateValues(ctx context.Context, values map[string]any) (types.Record, error) {
	s := m.compiled()
	out := make(types.Record, len(values))
	for key, raw := range values {
		if key == types.IDField {
			return nil, errors.New("nanodm: the id cannot be updated")
		}
		e, ok := s.Entry(key)
		if !ok {
			return nil, &UnknownKeyError{Class: m.name, Key: key}
		}
		v, err := m.coerce(e.Type, types.DeepCopy(raw), false)
		if err != nil {
			return nil, err
		}
		if !m.conforms(e.Type, v) {
			return nil, &ValidationError{Class: m.name, Field: key,
				Reason: fmt.Sprintf("expected %s, got %s", schema.TypeName(e.Type), schema.Describe(v))}
		}
		if doc, ok := v.(*Document); ok && e.Type.Kind == schema.KindEmbeddedRef {
			if err := doc.Validate(); err != nil {
				return nil, err
			}
		}
		dv, err := toDataValue(e.Type, v)
		if err != nil {
			return nil, err
		}
		out[key] = dv
	}
	if err := m.refsToIDs(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of matching records
func (m *Model) Count(ctx context.Context, query types.Query) (int, error) {
	adapter, err := m.prepare(ctx)
	if err != nil {
		return 0, err
	}
	return adapter.Count(ctx, m.collection, prepareQuery(query))
}

// ClearCollection removes every record of the class
func (m *Model) ClearCollection(ctx context.Context) error {
	adapter, err := m.prepare(ctx)
	if err != nil {
		return err
	}
	return adapter.ClearCollection(ctx, m.collection)
}

// prepareQuery replaces documents in query values with their ids so callers
// can write {"author": someUser}
func prepareQuery(q types.Query) types.Query {
	if q == nil {
		return types.Query{}
	}
	out := make(types.Query, len(q))
	for k, v := range q {
		out[k] = queryValue(v)
	}
	return out
}

func queryValue(v any) any {
	switch x := v.(type) {
	case *Document:
		if x == nil {
			return nil
		}
		if x.model.embedded {
			data, err := x.ToData(false)
			if err != nil {
				return x
			}
			return data
		}
		return x.id
	case types.Query:
		return map[string]any(prepareQuery(x))
	case map[string]any:
		return map[string]any(prepareQuery(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = queryValue(e)
		}
		return out
	case []*Document:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = queryValue(e)
		}
		return out
	}
	return v
}
