// Package types holds the value types shared between the document mapper and
// the storage engines: queries, records and the options that shape reads,
// updates and index creation.
package types

// IDField is the key under which every persisted record carries its identifier.
const IDField = "_id"

// Record is the flat keyed structure persisted for one document: the system
// id under IDField plus one entry per schema field. Reference fields hold
// plain ids and embedded documents hold nested maps.
type Record map[string]any

// ID returns the record identifier, or nil if the record has none.
func (r Record) ID() any {
	return r[IDField]
}

// Query selects records. Keys are field names (dot paths reach into nested
// maps) or the logical operators $and, $or and $not. A field value is either
// a literal, meaning equality, or an operator document such as
// {"$gte": 18, "$lt": 65}.
//
// Supported field operators: $eq $ne $gt $gte $lt $lte $in $nin $exists $regex.
type Query map[string]any

// SortField is a single ORDER BY clause
type SortField struct {
	Field      string
	Descending bool
}

// FindOptions configures how a Find call orders and pages results
type FindOptions struct {
	// Sort clauses are applied in order; later clauses break ties
	Sort []SortField

	// Skip is the number of matching records to drop from the front.
	// Zero or negative values mean no offset
	Skip int

	// Limit caps the number of records returned.
	// Zero or negative values mean no limit
	Limit int
}

// UpdateOptions configures FindOneAndUpdate
type UpdateOptions struct {
	// Upsert inserts a new record built from the query's equality
	// conditions and the update values when nothing matches
	Upsert bool
}

// IndexOptions configures CreateIndex
type IndexOptions struct {
	Unique bool
}
