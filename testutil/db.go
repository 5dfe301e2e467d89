// Package testutil provides the test harness shared by the nanodm packages:
// a memory backed DB, a call counting adapter, a seeded fixture and
// assertion helpers.
package testutil

import (
	"testing"

	"github.com/arthur-debert/nanodm/nanodm"
	"github.com/arthur-debert/nanodm/nanodm/store"
)

// NewMemoryDB returns a DB connected to a fresh in-memory store through a
// CountingAdapter. The DB is closed when the test ends.
func NewMemoryDB(t testing.TB, opts ...nanodm.Option) (*nanodm.DB, *CountingAdapter) {
	t.Helper()

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open memory store: %v", err)
	}
	counting := NewCountingAdapter(st)

	db := nanodm.New(opts...)
	if err := db.Connect(counting); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, counting
}
