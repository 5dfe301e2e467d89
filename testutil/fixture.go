package testutil

import (
	"context"
	_ "embed"
	"encoding/json"
	"testing"

	"github.com/arthur-debert/nanodm/nanodm"
	"github.com/arthur-debert/nanodm/nanodm/schema"
)

//go:embed testdata/library.json
var libraryJSON []byte

// Library provides typed access to the seeded fixture
type Library struct {
	DB      *nanodm.DB
	Adapter *CountingAdapter

	Address *nanodm.Model // embedded: street, city
	Author  *nanodm.Model // name (unique), email, born, address
	Book    *nanodm.Model // title, author, coauthors, year, genre

	// Documents by fixture key
	Authors map[string]*nanodm.Document
	Books   map[string]*nanodm.Document
}

// DefineLibrary declares the fixture classes on db
func DefineLibrary(db *nanodm.DB) (address, author, book *nanodm.Model) {
	address = db.DefineEmbedded("Address", schema.Decls{
		{Key: "street", Spec: schema.String},
		{Key: "city", Spec: schema.Opts{"type": schema.String, "required": true}},
	})
	author = db.Define("Author", schema.Decls{
		{Key: "name", Spec: schema.Opts{"type": schema.String, "required": true, "unique": true}},
		{Key: "email", Spec: schema.Opts{"type": schema.String, "match": `^[^@\s]+@[^@\s]+$`}},
		{Key: "born", Spec: schema.Date},
		{Key: "address", Spec: address},
	})
	book = db.Define("Book", schema.Decls{
		{Key: "title", Spec: schema.Opts{"type": schema.String, "required": true}},
		{Key: "author", Spec: schema.Named("Author")},
		{Key: "coauthors", Spec: schema.ArrayOf(schema.Named("Author"))},
		{Key: "year", Spec: schema.Opts{"type": schema.Number, "min": 1400}},
		{Key: "genre", Spec: schema.Opts{"type": schema.String, "choices": []any{"fantasy", "scifi", "other"}, "default": "other"}},
	})
	return address, author, book
}

type libraryData struct {
	Authors []map[string]any `json:"authors"`
	Books   []map[string]any `json:"books"`
}

// LoadLibrary returns a memory DB seeded with the fixture. Call counts on
// the adapter are reset after seeding.
func LoadLibrary(t *testing.T) *Library {
	t.Helper()
	ctx := context.Background()

	db, adapter := NewMemoryDB(t)
	lib := &Library{
		DB:      db,
		Adapter: adapter,
		Authors: make(map[string]*nanodm.Document),
		Books:   make(map[string]*nanodm.Document),
	}
	lib.Address, lib.Author, lib.Book = DefineLibrary(db)

	var data libraryData
	if err := json.Unmarshal(libraryJSON, &data); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	for _, raw := range data.Authors {
		key := raw["key"].(string)
		delete(raw, "key")
		doc, err := lib.Author.Create(raw)
		if err != nil {
			t.Fatalf("failed to create author %s: %v", key, err)
		}
		if err := doc.Save(ctx); err != nil {
			t.Fatalf("failed to save author %s: %v", key, err)
		}
		lib.Authors[key] = doc
	}

	// Books reference authors by fixture key
	for _, raw := range data.Books {
		key := raw["key"].(string)
		delete(raw, "key")
		if ref, ok := raw["author"].(string); ok {
			raw["author"] = lib.Authors[ref]
		}
		if refs, ok := raw["coauthors"].([]any); ok {
			docs := make([]any, len(refs))
			for i, ref := range refs {
				docs[i] = lib.Authors[ref.(string)]
			}
			raw["coauthors"] = docs
		}

		doc, err := lib.Book.Create(raw)
		if err != nil {
			t.Fatalf("failed to create book %s: %v", key, err)
		}
		if err := doc.Save(ctx); err != nil {
			t.Fatalf("failed to save book %s: %v", key, err)
		}
		lib.Books[key] = doc
	}

	adapter.Reset()
	return lib
}
