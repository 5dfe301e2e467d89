package nanodm

import (
	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/types"
)

// Option configures a DB
type Option func(*DB)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// WithDefaultUnknownKeyPolicy sets the policy for classes that do not set
// their own
func WithDefaultUnknownKeyPolicy(p UnknownKeyPolicy) Option {
	return func(db *DB) {
		db.unknownPolicy = p
	}
}

// ModelOption configures a Model at definition time
type ModelOption func(*Model)

// WithCollection overrides the collection name, which defaults to the
// lower-cased class name plus "s"
func WithCollection(name string) ModelOption {
	return func(m *Model) {
		m.collection = name
	}
}

// WithHooks sets the lifecycle hooks of the class
func WithHooks(h Hooks) ModelOption {
	return func(m *Model) {
		m.hooks = h
	}
}

// WithUnknownKeyPolicy overrides the DB's unknown key policy for the class
func WithUnknownKeyPolicy(p UnknownKeyPolicy) ModelOption {
	return func(m *Model) {
		m.unknownPolicy = &p
	}
}

// WithUnknownDataHandler installs a callback for unknown keys. It replaces
// the policy: returning nil accepts nothing by itself, the handler may call
// doc.SetExtra to keep the value.
func WithUnknownDataHandler(fn func(doc *Document, key string, value any) error) ModelOption {
	return func(m *Model) {
		m.unknownHandler = fn
	}
}

// findConfig is assembled from FindOption values
type findConfig struct {
	populate bool
	fields   []string
	sort     []types.SortField
	skip     int
	limit    int
	upsert   bool
}

func newFindConfig(opts []FindOption) findConfig {
	cfg := findConfig{populate: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c findConfig) findOptions() types.FindOptions {
	return types.FindOptions{Sort: c.sort, Skip: c.skip, Limit: c.limit}
}

// FindOption configures reads
type FindOption func(*findConfig)

// Populate turns reference population on (the default) or off
func Populate(enabled bool) FindOption {
	return func(c *findConfig) {
		c.populate = enabled
		c.fields = nil
	}
}

// PopulateFields restricts population to the named reference fields
func PopulateFields(fields ...string) FindOption {
	return func(c *findConfig) {
		c.populate = true
		c.fields = append([]string(nil), fields...)
	}
}

// Sort orders results ascending by field; repeated calls add tie breakers
func Sort(field string) FindOption {
	return func(c *findConfig) {
		c.sort = append(c.sort, types.SortField{Field: field})
	}
}

// SortDesc orders results descending by field
func SortDesc(field string) FindOption {
	return func(c *findConfig) {
		c.sort = append(c.sort, types.SortField{Field: field, Descending: true})
	}
}

// Skip drops the first n results
func Skip(n int) FindOption {
	return func(c *findConfig) {
		c.skip = n
	}
}

// Limit caps the number of results
func Limit(n int) FindOption {
	return func(c *findConfig) {
		c.limit = n
	}
}

// Upsert makes FindOneAndUpdate insert when nothing matches
func Upsert(enabled bool) FindOption {
	return func(c *findConfig) {
		c.upsert = enabled
	}
}
