// Package nanodm maps Go values to documents persisted through a
// storage.Adapter.
//
// Classes are declared once on a DB with an ordered field list:
//
//	db := nanodm.New()
//	users := db.Define("User", schema.Decls{
//		{Key: "name", Spec: schema.Opts{"type": schema.String, "required": true}},
//		{Key: "age", Spec: schema.Opts{"type": schema.Number, "min": 0, "max": 120}},
//		{Key: "tags", Spec: schema.ArrayOf(schema.String)},
//	})
//	_ = db.Connect(st)
//
//	u, err := users.Create(map[string]any{"name": "A", "age": 30})
//	err = u.Save(ctx)
//
// Documents go through a fixed lifecycle (validate, canonicalize, persist)
// with optional hooks around each phase, and reference fields are resolved
// in batches by Populate.
package nanodm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/nanodm/schema"
	"github.com/arthur-debert/nanodm/nanodm/storage"
)

// DB is the registry of classes and the holder of the storage adapter they
// persist through.
type DB struct {
	mu      sync.RWMutex
	adapter storage.Adapter
	models  map[string]*Model

	logger        *zap.Logger
	unknownPolicy UnknownKeyPolicy
}

var (
	_ schema.Resolver  = (*DB)(nil)
	_ schema.IDChecker = (*DB)(nil)
	_ schema.IDTyper   = (*DB)(nil)
)

// New creates an empty DB. Classes may be defined before Connect.
func New(opts ...Option) *DB {
	db := &DB{
		models:        make(map[string]*Model),
		unknownPolicy: UnknownReject,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = zap.NewNop()
	}
	return db
}

// Connect registers the storage adapter. It succeeds once per DB.
func (db *DB) Connect(adapter storage.Adapter) error {
	if adapter == nil {
		return errors.New("nanodm: nil storage adapter")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.adapter != nil {
		return ErrAlreadyConnected
	}
	db.adapter = adapter
	db.logger.Debug("connected storage adapter", zap.String("idType", adapter.NativeIDType()))
	return nil
}

// Adapter returns the connected adapter or ErrNotConnected
func (db *DB) Adapter() (storage.Adapter, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.adapter == nil {
		return nil, ErrNotConnected
	}
	return db.adapter, nil
}

// Close closes the adapter. The DB can be connected again afterwards.
func (db *DB) Close() error {
	db.mu.Lock()
	adapter := db.adapter
	db.adapter = nil
	db.mu.Unlock()

	if adapter == nil {
		return nil
	}
	return adapter.Close()
}

// Define registers a document class. It panics when name is empty or
// already defined, since both are programming errors. Declaration errors are
// reported by the first operation that needs the compiled schema, or
// eagerly through Model.Schema.
func (db *DB) Define(name string, decls schema.Decls, opts ...ModelOption) *Model {
	return db.define(name, false, decls, opts)
}

// DefineEmbedded registers an embedded class. Embedded documents live only
// inside other documents and may not hold document references.
func (db *DB) DefineEmbedded(name string, decls schema.Decls, opts ...ModelOption) *Model {
	return db.define(name, true, decls, opts)
}

func (db *DB) define(name string, embedded bool, decls schema.Decls, opts []ModelOption) *Model {
	if name == "" {
		panic("nanodm: class name cannot be empty")
	}
	m := newModel(db, name, embedded, decls, opts)

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.models[name]; exists {
		panic(fmt.Sprintf("nanodm: class %q already defined", name))
	}
	db.models[name] = m
	return m
}

// Model returns the class registered under name
func (db *DB) Model(name string) (*Model, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.models[name]
	return m, ok
}

// Models returns the registered class names, sorted
func (db *DB) Models() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.models))
	for name := range db.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve implements schema.Resolver for Named tokens
func (db *DB) Resolve(name string) (schema.Class, bool) {
	m, ok := db.Model(name)
	if !ok {
		return nil, false
	}
	return m, true
}

// IsNativeID reports whether the connected adapter recognizes v as an id.
// It is false when nothing is connected.
func (db *DB) IsNativeID(v any) bool {
	adapter, err := db.Adapter()
	if err != nil {
		return false
	}
	return adapter.IsNativeID(v)
}

// NativeIDType names the connected adapter's id type, or "" when nothing is
// connected
func (db *DB) NativeIDType() string {
	adapter, err := db.Adapter()
	if err != nil {
		return ""
	}
	return adapter.NativeIDType()
}
