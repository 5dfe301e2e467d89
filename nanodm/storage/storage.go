package storage

import (
	"time"

	"github.com/arthur-debert/nanodm/types"
)

// FormatVersion is written to the metadata of every data file
const FormatVersion = "1.0"

// StoreData is the complete content of an embedded store, persisted as a
// single JSON document.
type StoreData struct {
	Collections map[string][]types.Record    `json:"collections"`
	Indexes     map[string][]IndexDefinition `json:"indexes,omitempty"`
	Metadata    Metadata                     `json:"metadata"`
}

// IndexDefinition describes an index on a single field
type IndexDefinition struct {
	Field  string `json:"field"`
	Unique bool   `json:"unique,omitempty"`
}

// Metadata contains storage metadata
type Metadata struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStoreData returns empty store data stamped with now
func NewStoreData(now time.Time) *StoreData {
	return &StoreData{
		Collections: make(map[string][]types.Record),
		Indexes:     make(map[string][]IndexDefinition),
		Metadata: Metadata{
			Version:   FormatVersion,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Index returns the definition of the index on field, if any
func (d *StoreData) Index(collection, field string) (IndexDefinition, bool) {
	for _, idx := range d.Indexes[collection] {
		if idx.Field == field {
			return idx, true
		}
	}
	return IndexDefinition{}, false
}
