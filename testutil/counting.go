package testutil

import (
	"context"
	"sync"

	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// CountingAdapter wraps a storage.Adapter and records every call by
// operation and collection
type CountingAdapter struct {
	storage.Adapter

	mu    sync.Mutex
	calls map[string]int
}

// NewCountingAdapter wraps inner
func NewCountingAdapter(inner storage.Adapter) *CountingAdapter {
	return &CountingAdapter{Adapter: inner, calls: make(map[string]int)}
}

func (c *CountingAdapter) record(op, collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	c.calls[op+":"+collection]++
}

// Calls returns how often op was called, on collection when it is not empty
func (c *CountingAdapter) Calls(op, collection string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if collection == "" {
		return c.calls[op]
	}
	return c.calls[op+":"+collection]
}

// Reset forgets all recorded calls
func (c *CountingAdapter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = make(map[string]int)
}

func (c *CountingAdapter) Save(ctx context.Context, collection string, id any, values types.Record) (any, error) {
	c.record("Save", collection)
	return c.Adapter.Save(ctx, collection, id, values)
}

func (c *CountingAdapter) Delete(ctx context.Context, collection string, id any) (int, error) {
	c.record("Delete", collection)
	return c.Adapter.Delete(ctx, collection, id)
}

func (c *CountingAdapter) DeleteOne(ctx context.Context, collection string, query types.Query) (int, error) {
	c.record("DeleteOne", collection)
	return c.Adapter.DeleteOne(ctx, collection, query)
}

func (c *CountingAdapter) DeleteMany(ctx context.Context, collection string, query types.Query) (int, error) {
	c.record("DeleteMany", collection)
	return c.Adapter.DeleteMany(ctx, collection, query)
}

func (c *CountingAdapter) FindOne(ctx context.Context, collection string, query types.Query) (types.Record, error) {
	c.record("FindOne", collection)
	return c.Adapter.FindOne(ctx, collection, query)
}

func (c *CountingAdapter) Find(ctx context.Context, collection string, query types.Query, opts types.FindOptions) ([]types.Record, error) {
	c.record("Find", collection)
	return c.Adapter.Find(ctx, collection, query, opts)
}

func (c *CountingAdapter) FindOneAndUpdate(ctx context.Context, collection string, query types.Query, values types.Record, opts types.UpdateOptions) (types.Record, error) {
	c.record("FindOneAndUpdate", collection)
	return c.Adapter.FindOneAndUpdate(ctx, collection, query, values, opts)
}

func (c *CountingAdapter) FindOneAndDelete(ctx context.Context, collection string, query types.Query) (int, error) {
	c.record("FindOneAndDelete", collection)
	return c.Adapter.FindOneAndDelete(ctx, collection, query)
}

func (c *CountingAdapter) Count(ctx context.Context, collection string, query types.Query) (int, error) {
	c.record("Count", collection)
	return c.Adapter.Count(ctx, collection, query)
}

func (c *CountingAdapter) CreateIndex(ctx context.Context, collection, field string, opts types.IndexOptions) error {
	c.record("CreateIndex", collection)
	return c.Adapter.CreateIndex(ctx, collection, field, opts)
}
