// Package storage defines the contract between the document mapper and the
// storage engines that persist its records.
package storage

import (
	"context"
	"errors"

	"github.com/arthur-debert/nanodm/types"
)

var (
	// ErrUniqueViolation is returned when a write would duplicate a value
	// in a unique index.
	ErrUniqueViolation = errors.New("unique index violation")

	// ErrClosed is returned by adapters after Close has been called
	ErrClosed = errors.New("storage is closed")
)

// Adapter is the narrow set of operations the document mapper needs from a
// storage engine. Records handed to an adapter are plain values: document
// references are ids and embedded documents are nested maps.
//
// Every blocking operation takes a context; engines check it before doing
// any work but never roll back a write that already happened.
type Adapter interface {
	// Save inserts values when id is nil and upserts by id otherwise.
	// It returns the effective id of the stored record.
	Save(ctx context.Context, collection string, id any, values types.Record) (any, error)

	// Delete removes the record with the given id and returns the number
	// of removed records (0 or 1).
	Delete(ctx context.Context, collection string, id any) (int, error)

	// DeleteOne removes the first record matching query
	DeleteOne(ctx context.Context, collection string, query types.Query) (int, error)

	// DeleteMany removes every record matching query
	DeleteMany(ctx context.Context, collection string, query types.Query) (int, error)

	// FindOne returns the first matching record, or nil when nothing matches
	FindOne(ctx context.Context, collection string, query types.Query) (types.Record, error)

	// Find returns the matching records ordered and windowed by opts
	Find(ctx context.Context, collection string, query types.Query, opts types.FindOptions) ([]types.Record, error)

	// FindOneAndUpdate sets the given fields on the first matching record
	// and returns the updated record. With opts.Upsert a record is created
	// from the query's equality fields and values when nothing matches;
	// otherwise nil is returned.
	FindOneAndUpdate(ctx context.Context, collection string, query types.Query, values types.Record, opts types.UpdateOptions) (types.Record, error)

	// FindOneAndDelete removes the first matching record and returns the
	// number of removed records.
	FindOneAndDelete(ctx context.Context, collection string, query types.Query) (int, error)

	// Count returns the number of matching records
	Count(ctx context.Context, collection string, query types.Query) (int, error)

	// CreateIndex ensures an index on field exists
	CreateIndex(ctx context.Context, collection, field string, opts types.IndexOptions) error

	// IsNativeID reports whether v is an identifier this engine produces
	IsNativeID(v any) bool

	// CanonicalID returns the normalized form of an id used for equality
	// and map lookups.
	CanonicalID(id any) string

	// NativeIDType names the engine's identifier type
	NativeIDType() string

	// ClearCollection removes every record of a collection
	ClearCollection(ctx context.Context, collection string) error

	// DropDatabase removes every collection and index
	DropDatabase(ctx context.Context) error

	// Close releases the engine's resources
	Close() error
}
